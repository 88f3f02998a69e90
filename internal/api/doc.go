// Package api provides the Polymarket CLOB REST client for market data.
//
// REST endpoint:
//   - Production: https://clob.polymarket.com
//
// Key endpoints: /markets, /sampling-markets, /book, /books, /midpoint,
// /last-trade-price
//
// All endpoints used here are public; no credentials are attached.
package api
