// Package writer implements the batch writers feeding TimescaleDB.
//
// Writers:
//   - BookWriter: full order book snapshots (websocket and REST poller)
//   - ChangeWriter: individual price level changes
//   - TradeWriter: the caller's fills from the user feed
//
// All writers are append-only: pgx batch inserts with ON CONFLICT DO
// NOTHING, flushed on batch size or a ticker. Prices are stored as
// numeric, sent as decimal strings with no float round-trip.
package writer
