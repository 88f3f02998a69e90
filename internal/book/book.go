package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/ws"
)

// Book is one asset's order book, rebuilt from feed events. Levels are
// keyed by exact price string, so prices never go through floats. A Book
// is not safe for concurrent use; the Keeper serializes access.
type Book struct {
	assetID string
	market  string
	hash    string

	exchangeTS int64 // µs since epoch, from the latest applied event

	bids map[string]model.PriceLevel
	asks map[string]model.PriceLevel
}

// New returns an empty book for one asset.
func New(assetID string) *Book {
	return &Book{
		assetID: assetID,
		bids:    make(map[string]model.PriceLevel),
		asks:    make(map[string]model.PriceLevel),
	}
}

// AssetID returns the token ID this book tracks.
func (b *Book) AssetID() string { return b.assetID }

// ApplySnapshot replaces the book's entire state with the snapshot.
func (b *Book) ApplySnapshot(ev *ws.BookEvent, exchangeTS int64) {
	b.market = ev.Market
	b.hash = ev.Hash
	b.exchangeTS = exchangeTS

	b.bids = make(map[string]model.PriceLevel, len(ev.Bids))
	for _, lvl := range ev.Bids {
		if lvl.Size.IsZero() {
			continue
		}
		b.bids[lvl.Price.String()] = model.PriceLevel{Price: lvl.Price, Size: lvl.Size}
	}

	b.asks = make(map[string]model.PriceLevel, len(ev.Asks))
	for _, lvl := range ev.Asks {
		if lvl.Size.IsZero() {
			continue
		}
		b.asks[lvl.Price.String()] = model.PriceLevel{Price: lvl.Price, Size: lvl.Size}
	}
}

// ApplyChange mutates one level. A zero size removes the level; any other
// size replaces it.
func (b *Book) ApplyChange(c ws.PriceChange, market string, exchangeTS int64) {
	if market != "" {
		b.market = market
	}
	b.exchangeTS = exchangeTS

	side := b.bids
	if c.Side == ws.SideSell {
		side = b.asks
	}

	key := c.Price.String()
	if c.Removed() {
		delete(side, key)
		return
	}
	side[key] = model.PriceLevel{Price: c.Price, Size: c.Size}
}

// BestBid returns the highest bid, or false for an empty side.
func (b *Book) BestBid() (model.PriceLevel, bool) {
	return bestLevel(b.bids, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

// BestAsk returns the lowest ask, or false for an empty side.
func (b *Book) BestAsk() (model.PriceLevel, bool) {
	return bestLevel(b.asks, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

func bestLevel(side map[string]model.PriceLevel, better func(a, b decimal.Decimal) bool) (model.PriceLevel, bool) {
	var best model.PriceLevel
	found := false
	for _, lvl := range side {
		if !found || better(lvl.Price, best.Price) {
			best = lvl
			found = true
		}
	}
	return best, found
}

// Spread returns best ask minus best bid, or false when either side is
// empty.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Mid returns the book midpoint, or false when either side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Crossed reports whether the best bid meets or exceeds the best ask, a
// transient state between a delta arriving and the matching side
// catching up. Empty sides are never crossed.
func (b *Book) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return bid.Price.GreaterThanOrEqual(ask.Price)
}

// ExchangeTS returns the exchange timestamp of the latest applied event
// in µs since epoch, 0 before any event.
func (b *Book) ExchangeTS() int64 { return b.exchangeTS }

// StaleAt reports whether the book has seen no event for maxAge as of
// now (both µs since epoch). A book with no events yet is always stale.
func (b *Book) StaleAt(now, maxAge int64) bool {
	return b.exchangeTS == 0 || now-b.exchangeTS > maxAge
}

// Depth returns the number of populated bid and ask levels.
func (b *Book) Depth() (bids, asks int) {
	return len(b.bids), len(b.asks)
}

// Bids returns the bid side sorted best (highest) first.
func (b *Book) Bids() []model.PriceLevel {
	return sortedLevels(b.bids, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

// Asks returns the ask side sorted best (lowest) first.
func (b *Book) Asks() []model.PriceLevel {
	return sortedLevels(b.asks, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

func sortedLevels(side map[string]model.PriceLevel, better func(a, b decimal.Decimal) bool) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(side))
	for _, lvl := range side {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool {
		return better(levels[i].Price, levels[j].Price)
	})
	return levels
}

// Snapshot captures the book as a persistable record.
func (b *Book) Snapshot(snapshotTS int64) model.BookSnapshot {
	return model.BookSnapshot{
		SnapshotTS: snapshotTS,
		ExchangeTS: b.exchangeTS,
		AssetID:    b.assetID,
		Market:     b.market,
		Source:     "ws",
		Bids:       b.Bids(),
		Asks:       b.Asks(),
		Hash:       b.hash,
	}
}
