// Package router fans decoded feed events into per-family buffers.
//
// A Router drains any number of market and user streams, converts their
// events to model rows, and queues them in growable ring buffers that
// the writers consume. Decode errors and session drops coming out of a
// stream are counted here; reconnection is the stream's own business.
// The router also folds every market event into a book.Keeper so the
// current state of each book is inspectable without touching the
// database.
package router
