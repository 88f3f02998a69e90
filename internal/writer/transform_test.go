package writer

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-data/internal/model"
)

func TestTransformSnapshot(t *testing.T) {
	snap := model.BookSnapshot{
		SnapshotTS: 1700000000000000,
		ExchangeTS: 1699999999000000,
		AssetID:    "123",
		Market:     "0xabc",
		Source:     "ws",
		Bids: []model.PriceLevel{
			{Price: dec(t, "0.47"), Size: dec(t, "50")},
			{Price: dec(t, "0.48"), Size: dec(t, "100")},
		},
		Asks: []model.PriceLevel{
			{Price: dec(t, "0.52"), Size: dec(t, "80")},
		},
		Hash: "h1",
	}

	row := transformSnapshot(snap)

	if row.AssetID != "123" || row.Market != "0xabc" || row.Source != "ws" {
		t.Errorf("row ids = %q/%q/%q, want 123/0xabc/ws", row.AssetID, row.Market, row.Source)
	}
	if row.BestBid != "0.48" {
		t.Errorf("BestBid = %q, want 0.48", row.BestBid)
	}
	if row.BestAsk != "0.52" {
		t.Errorf("BestAsk = %q, want 0.52", row.BestAsk)
	}
	if row.Spread != "0.04" {
		t.Errorf("Spread = %q, want 0.04", row.Spread)
	}
	if string(row.Asks) != `[{"price":"0.52","size":"80"}]` {
		t.Errorf("Asks JSON = %s", row.Asks)
	}
	if row.Hash != "h1" {
		t.Errorf("Hash = %q, want h1", row.Hash)
	}
}

func TestTransformSnapshotEmptySides(t *testing.T) {
	row := transformSnapshot(model.BookSnapshot{AssetID: "123", Source: "rest"})

	if row.BestBid != "" || row.BestAsk != "" || row.Spread != "" {
		t.Errorf("best-of-book = %q/%q/%q, want all empty", row.BestBid, row.BestAsk, row.Spread)
	}
	if string(row.Bids) != "[]" || string(row.Asks) != "[]" {
		t.Errorf("level JSON = %s / %s, want []", row.Bids, row.Asks)
	}
}

func TestTransformChange(t *testing.T) {
	change := model.LevelChange{
		ExchangeTS: 1700000000000000,
		ReceivedAt: 1700000000000100,
		AssetID:    "123",
		Market:     "0xabc",
		Side:       "SELL",
		Price:      dec(t, "0.51"),
		Size:       dec(t, "0"),
		BestBid:    dec(t, "0.48"),
		BestAsk:    dec(t, "0.52"),
	}

	row := transformChange(change)

	if row.Size != "0" {
		t.Errorf("Size = %q, want 0 (removal)", row.Size)
	}
	if row.Side != "SELL" || row.Price != "0.51" {
		t.Errorf("row = %+v, want SELL at 0.51", row)
	}
	if row.BestBid != "0.48" || row.BestAsk != "0.52" {
		t.Errorf("best-of-book = %q/%q, want 0.48/0.52", row.BestBid, row.BestAsk)
	}
}

func TestTransformChangeZeroBestPrices(t *testing.T) {
	row := transformChange(model.LevelChange{
		AssetID: "123",
		Side:    "BUY",
		Price:   dec(t, "0.50"),
		Size:    dec(t, "10"),
	})

	// Absent best-of-book becomes NULL, not numeric zero.
	if row.BestBid != "" || row.BestAsk != "" {
		t.Errorf("best-of-book = %q/%q, want empty", row.BestBid, row.BestAsk)
	}
}

func TestTransformTrade(t *testing.T) {
	id := uuid.New()
	trade := model.Trade{
		TradeID:    id,
		ExchangeTS: 1700000000000000,
		ReceivedAt: 1700000000000100,
		Market:     "0xabc",
		AssetID:    "123",
		Side:       "BUY",
		Price:      dec(t, "0.55"),
		Size:       dec(t, "40"),
		Status:     "MATCHED",
		Outcome:    "Yes",
	}

	row := transformTrade(trade)

	if row.TradeID != id {
		t.Errorf("TradeID = %s, want %s", row.TradeID, id)
	}
	if row.Price != "0.55" || row.Size != "40" {
		t.Errorf("price/size = %q/%q, want 0.55/40", row.Price, row.Size)
	}
	if row.Status != "MATCHED" || row.Outcome != "Yes" {
		t.Errorf("status/outcome = %q/%q, want MATCHED/Yes", row.Status, row.Outcome)
	}
}
