package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/ws"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func snapshotEvent(t *testing.T) *ws.BookEvent {
	return &ws.BookEvent{
		EventType: "book",
		Market:    "0xm1",
		AssetID:   "100",
		Bids: []ws.PriceLevel{
			{Price: d(t, "0.50"), Size: d(t, "120")},
			{Price: d(t, "0.52"), Size: d(t, "30")},
			{Price: d(t, "0.48"), Size: d(t, "200")},
		},
		Asks: []ws.PriceLevel{
			{Price: d(t, "0.55"), Size: d(t, "80")},
			{Price: d(t, "0.54"), Size: d(t, "25")},
		},
		Timestamp: "1705321845123",
		Hash:      "0xabc",
	}
}

func TestBook_ApplySnapshot(t *testing.T) {
	b := New("100")
	b.ApplySnapshot(snapshotEvent(t), 1705321845123000)

	bids, asks := b.Depth()
	if bids != 3 || asks != 2 {
		t.Fatalf("depth = %d bids, %d asks, want 3 and 2", bids, asks)
	}

	best, ok := b.BestBid()
	if !ok || !best.Price.Equal(d(t, "0.52")) {
		t.Errorf("BestBid = %s (%v), want 0.52", best.Price, ok)
	}
	bestAsk, ok := b.BestAsk()
	if !ok || !bestAsk.Price.Equal(d(t, "0.54")) {
		t.Errorf("BestAsk = %s (%v), want 0.54", bestAsk.Price, ok)
	}

	// A second snapshot replaces everything.
	b.ApplySnapshot(&ws.BookEvent{
		Market:  "0xm1",
		AssetID: "100",
		Bids:    []ws.PriceLevel{{Price: d(t, "0.40"), Size: d(t, "10")}},
		Asks:    []ws.PriceLevel{{Price: d(t, "0.60"), Size: d(t, "10")}},
		Hash:    "0xdef",
	}, 1705321846000000)

	bids, asks = b.Depth()
	if bids != 1 || asks != 1 {
		t.Errorf("depth after replace = %d bids, %d asks, want 1 and 1", bids, asks)
	}
	best, _ = b.BestBid()
	if !best.Price.Equal(d(t, "0.40")) {
		t.Errorf("BestBid after replace = %s, want 0.40", best.Price)
	}
}

func TestBook_SnapshotSkipsZeroLevels(t *testing.T) {
	b := New("100")
	b.ApplySnapshot(&ws.BookEvent{
		AssetID: "100",
		Bids: []ws.PriceLevel{
			{Price: d(t, "0.50"), Size: d(t, "0")},
			{Price: d(t, "0.49"), Size: d(t, "10")},
		},
	}, 0)

	bids, _ := b.Depth()
	if bids != 1 {
		t.Errorf("depth = %d bids, want 1 (zero-size level dropped)", bids)
	}
}

func TestBook_ApplyChange(t *testing.T) {
	b := New("100")
	b.ApplySnapshot(snapshotEvent(t), 1705321845123000)

	// Replace an existing bid level.
	b.ApplyChange(ws.PriceChange{
		AssetID: "100",
		Price:   d(t, "0.52"),
		Size:    d(t, "45"),
		Side:    ws.SideBuy,
	}, "0xm1", 1705321845200000)

	levels := b.Bids()
	if !levels[0].Size.Equal(d(t, "45")) {
		t.Errorf("top bid size = %s, want 45", levels[0].Size)
	}

	// Add a new ask level.
	b.ApplyChange(ws.PriceChange{
		AssetID: "100",
		Price:   d(t, "0.53"),
		Size:    d(t, "5"),
		Side:    ws.SideSell,
	}, "0xm1", 1705321845300000)

	bestAsk, _ := b.BestAsk()
	if !bestAsk.Price.Equal(d(t, "0.53")) {
		t.Errorf("BestAsk = %s, want 0.53", bestAsk.Price)
	}

	// Zero size removes the level.
	b.ApplyChange(ws.PriceChange{
		AssetID: "100",
		Price:   d(t, "0.53"),
		Size:    decimal.Zero,
		Side:    ws.SideSell,
	}, "0xm1", 1705321845400000)

	bestAsk, _ = b.BestAsk()
	if !bestAsk.Price.Equal(d(t, "0.54")) {
		t.Errorf("BestAsk after removal = %s, want 0.54", bestAsk.Price)
	}

	// Removing a level that does not exist is a no-op.
	b.ApplyChange(ws.PriceChange{
		AssetID: "100",
		Price:   d(t, "0.99"),
		Size:    decimal.Zero,
		Side:    ws.SideSell,
	}, "0xm1", 1705321845500000)

	_, asks := b.Depth()
	if asks != 2 {
		t.Errorf("asks = %d, want 2", asks)
	}
}

func TestBook_SortedSides(t *testing.T) {
	b := New("100")
	b.ApplySnapshot(snapshotEvent(t), 0)

	bids := b.Bids()
	wantBids := []string{"0.52", "0.5", "0.48"}
	for i, want := range wantBids {
		if bids[i].Price.String() != want {
			t.Errorf("bids[%d] = %s, want %s", i, bids[i].Price, want)
		}
	}

	asks := b.Asks()
	wantAsks := []string{"0.54", "0.55"}
	for i, want := range wantAsks {
		if asks[i].Price.String() != want {
			t.Errorf("asks[%d] = %s, want %s", i, asks[i].Price, want)
		}
	}
}

func TestBook_SpreadAndMid(t *testing.T) {
	b := New("100")

	if _, ok := b.Spread(); ok {
		t.Error("Spread on empty book reported ok")
	}
	if _, ok := b.Mid(); ok {
		t.Error("Mid on empty book reported ok")
	}

	b.ApplySnapshot(snapshotEvent(t), 0)

	spread, ok := b.Spread()
	if !ok || !spread.Equal(d(t, "0.02")) {
		t.Errorf("Spread = %s (%v), want 0.02", spread, ok)
	}
	mid, ok := b.Mid()
	if !ok || !mid.Equal(d(t, "0.53")) {
		t.Errorf("Mid = %s (%v), want 0.53", mid, ok)
	}
}

func TestBook_Crossed(t *testing.T) {
	b := New("100")
	if b.Crossed() {
		t.Error("empty book reported crossed")
	}

	b.ApplySnapshot(snapshotEvent(t), 0)
	if b.Crossed() {
		t.Error("normal book reported crossed")
	}

	// A bid at the ask crosses the book.
	b.ApplyChange(ws.PriceChange{
		AssetID: "100",
		Price:   d(t, "0.54"),
		Size:    d(t, "10"),
		Side:    ws.SideBuy,
	}, "0xm1", 0)
	if !b.Crossed() {
		t.Error("bid at best ask not reported crossed")
	}
}

func TestBook_StaleAt(t *testing.T) {
	b := New("100")
	if !b.StaleAt(1705321845123000, 60_000_000) {
		t.Error("book with no events not reported stale")
	}

	b.ApplySnapshot(snapshotEvent(t), 1705321845123000)
	if b.StaleAt(1705321845123000+30_000_000, 60_000_000) {
		t.Error("fresh book reported stale")
	}
	if !b.StaleAt(1705321845123000+61_000_000, 60_000_000) {
		t.Error("old book not reported stale")
	}
}

func TestBook_Snapshot(t *testing.T) {
	b := New("100")
	b.ApplySnapshot(snapshotEvent(t), 1705321845123000)

	snap := b.Snapshot(1705321845200000)
	if snap.AssetID != "100" {
		t.Errorf("AssetID = %q, want 100", snap.AssetID)
	}
	if snap.Market != "0xm1" {
		t.Errorf("Market = %q, want 0xm1", snap.Market)
	}
	if snap.Source != "ws" {
		t.Errorf("Source = %q, want ws", snap.Source)
	}
	if snap.ExchangeTS != 1705321845123000 {
		t.Errorf("ExchangeTS = %d, want 1705321845123000", snap.ExchangeTS)
	}
	if snap.Hash != "0xabc" {
		t.Errorf("Hash = %q, want 0xabc", snap.Hash)
	}
	if len(snap.Bids) != 3 || len(snap.Asks) != 2 {
		t.Errorf("levels = %d bids, %d asks, want 3 and 2", len(snap.Bids), len(snap.Asks))
	}
	if !snap.Bids[0].Price.Equal(d(t, "0.52")) {
		t.Errorf("Bids[0].Price = %s, want 0.52 (best first)", snap.Bids[0].Price)
	}
}

func TestKeeper_Apply(t *testing.T) {
	k := NewKeeper()
	k.Apply(snapshotEvent(t))

	if k.Len() != 1 {
		t.Fatalf("Len = %d, want 1", k.Len())
	}

	k.Apply(&ws.PriceChangeEvent{
		EventType: "price_change",
		Market:    "0xm1",
		PriceChanges: []ws.PriceChange{
			{AssetID: "100", Price: d(t, "0.52"), Size: decimal.Zero, Side: ws.SideBuy},
			{AssetID: "200", Price: d(t, "0.30"), Size: d(t, "15"), Side: ws.SideBuy},
		},
		Timestamp: "1705321845200",
	})

	// The change created a book for the unseen asset.
	if k.Len() != 2 {
		t.Errorf("Len = %d, want 2", k.Len())
	}

	snap, ok := k.Snapshot("100", 1705321845300000)
	if !ok {
		t.Fatal("Snapshot(100) missing")
	}
	if len(snap.Bids) != 2 {
		t.Errorf("bids = %d, want 2 (0.52 removed)", len(snap.Bids))
	}

	snap, ok = k.Snapshot("200", 1705321845300000)
	if !ok {
		t.Fatal("Snapshot(200) missing")
	}
	if len(snap.Bids) != 1 || !snap.Bids[0].Price.Equal(d(t, "0.30")) {
		t.Errorf("new asset bids = %+v, want one level at 0.30", snap.Bids)
	}
	if snap.ExchangeTS != 1705321845200000 {
		t.Errorf("ExchangeTS = %d, want 1705321845200000", snap.ExchangeTS)
	}
}

func TestKeeper_UnknownAsset(t *testing.T) {
	k := NewKeeper()
	if _, ok := k.Snapshot("nope", 0); ok {
		t.Error("Snapshot of unknown asset reported ok")
	}
	if assets := k.Assets(); len(assets) != 0 {
		t.Errorf("Assets = %v, want empty", assets)
	}
}
