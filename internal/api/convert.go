package api

import (
	"strconv"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// ParseMillis parses an exchange millisecond-string timestamp to
// microseconds since epoch. Returns 0 for empty or invalid input.
func ParseMillis(ms string) int64 {
	if ms == "" {
		return 0
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0
	}
	return n * 1000
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToModel converts an APIMarket to model.Market.
func (m *APIMarket) ToModel() model.Market {
	return model.Market{
		ConditionID:      m.ConditionID,
		QuestionID:       m.QuestionID,
		Slug:             m.MarketSlug,
		Question:         m.Question,
		Category:         m.Category,
		Active:           m.Active,
		Closed:           m.Closed,
		AcceptingOrders:  m.AcceptingOrders,
		NegRisk:          m.NegRisk,
		MinimumOrderSize: m.MinimumOrderSize,
		MinimumTickSize:  m.MinimumTickSize,
		EndTS:            ParseTimestamp(m.EndDateISO),
		GameStartTS:      ParseTimestamp(m.GameStartTime),
		UpdatedAt:        NowMicro(),
	}
}

// TokenModels converts the market's outcome tokens to model.Token rows.
// Tokens with an empty ID are skipped; delisted markets carry them.
func (m *APIMarket) TokenModels() []model.Token {
	now := NowMicro()
	tokens := make([]model.Token, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		if t.TokenID == "" {
			continue
		}
		tokens = append(tokens, model.Token{
			TokenID:     t.TokenID,
			ConditionID: m.ConditionID,
			Outcome:     t.Outcome,
			Winner:      t.Winner,
			Price:       t.Price,
			UpdatedAt:   now,
		})
	}
	return tokens
}

// ToSnapshot converts an OrderBookSummary to model.BookSnapshot.
func (b *OrderBookSummary) ToSnapshot(source string) model.BookSnapshot {
	bids := make([]model.PriceLevel, 0, len(b.Bids))
	for _, level := range b.Bids {
		bids = append(bids, model.PriceLevel{Price: level.Price, Size: level.Size})
	}

	asks := make([]model.PriceLevel, 0, len(b.Asks))
	for _, level := range b.Asks {
		asks = append(asks, model.PriceLevel{Price: level.Price, Size: level.Size})
	}

	return model.BookSnapshot{
		SnapshotTS: NowMicro(),
		ExchangeTS: ParseMillis(b.Timestamp),
		AssetID:    b.AssetID,
		Market:     b.Market,
		Source:     source,
		Bids:       bids,
		Asks:       asks,
		Hash:       b.Hash,
	}
}
