// Package book maintains live order books from market feed events.
//
// A Book holds one asset's bid and ask side; a Keeper tracks books for a
// whole subscription, applying snapshots and level changes as they arrive
// and handing out point-in-time copies for persistence.
package book
