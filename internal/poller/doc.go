// Package poller implements the REST book poller.
//
// The poller:
//   - Fetches full order books for every active token on an interval
//   - Batches tokens into POST /books calls with bounded concurrency
//   - Provides backup coverage for anything the websocket feed missed
//   - Marks its snapshots with source="rest"
package poller
