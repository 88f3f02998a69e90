// Package database provides connection pool management for TimescaleDB.
//
// Each gatherer keeps its time-series data (book snapshots, level
// changes, trades) in a local TimescaleDB instance; the deduplicator
// later merges gatherer databases into the production dataset.
package database
