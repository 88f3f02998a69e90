package router

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/ws"
)

// snapshotFromEvent converts a feed book snapshot to its model row.
func snapshotFromEvent(e *ws.BookEvent) model.BookSnapshot {
	bids := make([]model.PriceLevel, 0, len(e.Bids))
	for _, l := range e.Bids {
		bids = append(bids, model.PriceLevel{Price: l.Price, Size: l.Size})
	}
	asks := make([]model.PriceLevel, 0, len(e.Asks))
	for _, l := range e.Asks {
		asks = append(asks, model.PriceLevel{Price: l.Price, Size: l.Size})
	}

	return model.BookSnapshot{
		SnapshotTS: nowMicro(),
		ExchangeTS: parseMillis(e.Timestamp),
		AssetID:    e.AssetID,
		Market:     e.Market,
		Source:     "ws",
		Bids:       bids,
		Asks:       asks,
		Hash:       e.Hash,
	}
}

// changesFromEvent flattens a price-change batch into one row per level.
func changesFromEvent(e *ws.PriceChangeEvent) []model.LevelChange {
	exchangeTS := parseMillis(e.Timestamp)
	receivedAt := nowMicro()

	rows := make([]model.LevelChange, 0, len(e.PriceChanges))
	for _, c := range e.PriceChanges {
		rows = append(rows, model.LevelChange{
			ExchangeTS: exchangeTS,
			ReceivedAt: receivedAt,
			AssetID:    c.AssetID,
			Market:     e.Market,
			Side:       string(c.Side),
			Price:      c.Price,
			Size:       c.Size,
			BestBid:    c.BestBid,
			BestAsk:    c.BestAsk,
		})
	}
	return rows
}

// tradeFromEvent converts a user-feed fill to its model row. Trade IDs
// arrive as UUID strings; anything else gets a fresh ID so the row is
// still recorded.
func tradeFromEvent(e *ws.TradeEvent) model.Trade {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}

	return model.Trade{
		TradeID:    id,
		ExchangeTS: parseMillis(e.MatchTime),
		ReceivedAt: nowMicro(),
		Market:     e.Market,
		AssetID:    e.AssetID,
		Side:       string(e.Side),
		Price:      e.Price,
		Size:       e.Size,
		Status:     e.Status,
		Outcome:    e.Outcome,
	}
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

func nowMicro() int64 {
	return time.Now().UnixMicro()
}
