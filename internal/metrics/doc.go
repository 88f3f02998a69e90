// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Decoded event rates and decode failures per feed
//   - Session drops and reconnect driver state per stream
//   - Router buffer depth
//   - Writer insert/conflict counts and flush latencies
package metrics
