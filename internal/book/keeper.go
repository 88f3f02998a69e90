package book

import (
	"strconv"
	"sync"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/ws"
)

// Keeper tracks live books for every asset seen on a feed. Safe for
// concurrent use.
type Keeper struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewKeeper returns an empty keeper.
func NewKeeper() *Keeper {
	return &Keeper{books: make(map[string]*Book)}
}

// Apply folds one feed event into the tracked books. Book snapshots
// replace an asset's state; price changes mutate individual levels.
// Unknown assets are created on first sight.
func (k *Keeper) Apply(ev ws.Event) {
	switch e := ev.(type) {
	case *ws.BookEvent:
		ts := parseMillis(e.Timestamp)
		k.mu.Lock()
		k.book(e.AssetID).ApplySnapshot(e, ts)
		k.mu.Unlock()
	case *ws.PriceChangeEvent:
		ts := parseMillis(e.Timestamp)
		k.mu.Lock()
		for _, c := range e.PriceChanges {
			k.book(c.AssetID).ApplyChange(c, e.Market, ts)
		}
		k.mu.Unlock()
	}
}

// book returns the live book for assetID, creating it if needed. Callers
// hold k.mu.
func (k *Keeper) book(assetID string) *Book {
	b, ok := k.books[assetID]
	if !ok {
		b = New(assetID)
		k.books[assetID] = b
	}
	return b
}

// Snapshot captures one asset's book, or false when the asset is unknown.
func (k *Keeper) Snapshot(assetID string, snapshotTS int64) (model.BookSnapshot, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	b, ok := k.books[assetID]
	if !ok {
		return model.BookSnapshot{}, false
	}
	return b.Snapshot(snapshotTS), true
}

// Assets lists every asset with a tracked book.
func (k *Keeper) Assets() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	assets := make([]string, 0, len(k.books))
	for id := range k.books {
		assets = append(assets, id)
	}
	return assets
}

// Len returns the number of tracked books.
func (k *Keeper) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.books)
}

// parseMillis converts the feed's millisecond-string timestamp to µs
// since epoch; malformed input becomes 0.
func parseMillis(ms string) int64 {
	if ms == "" {
		return 0
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0
	}
	return n * 1000
}
