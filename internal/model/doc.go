// Package model defines shared data types used across the Polymarket data
// platform.
//
// All types mirror the database schema in migrations/.
//
// Conventions:
//   - Prices and sizes: decimal.Decimal, parsed from the exchange's decimal
//     strings with no float round-trip
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: string for condition and token IDs, uuid.UUID for trade IDs
package model
