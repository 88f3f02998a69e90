// Package ws implements the Polymarket CLOB WebSocket clients.
//
// Two feeds are supported:
//   - Market feed (wss://ws-subscriptions-clob.polymarket.com/ws/market):
//     order book snapshots and incremental price changes for subscribed
//     token IDs. No authentication.
//   - User feed (wss://ws-subscriptions-clob.polymarket.com/ws/user):
//     the caller's own trades and order updates. Requires API credentials,
//     sent verbatim in the subscription frame.
//
// A Session is one live connection; its Next method yields decoded events
// until the session ends. Stream wraps a connect function and survives
// disconnects by redialing with exponential backoff, presenting all
// sessions as one continuous event sequence.
//
// The server disconnects idle connections after a minute or two, so
// sessions send keep-alive pings on an interval by default.
package ws
