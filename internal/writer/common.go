package writer

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
)

// levelJSON is the JSONB shape for one stored price level. The decimal
// values marshal as strings, matching the wire format.
type levelJSON struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// levelsToJSON serializes book levels for a JSONB column.
func levelsToJSON(levels []model.PriceLevel) []byte {
	out := make([]levelJSON, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelJSON{Price: l.Price, Size: l.Size})
	}
	data, err := json.Marshal(out)
	if err != nil {
		// Decimal marshaling cannot fail; keep the column well-formed anyway.
		return []byte("[]")
	}
	return data
}

// bestBid returns the highest bid price as a string, or "" for an empty
// side. Snapshot levels arrive in no guaranteed order, so scan.
func bestBid(levels []model.PriceLevel) string {
	if len(levels) == 0 {
		return ""
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if l.Price.GreaterThan(best) {
			best = l.Price
		}
	}
	return best.String()
}

// bestAsk returns the lowest ask price as a string, or "" for an empty
// side.
func bestAsk(levels []model.PriceLevel) string {
	if len(levels) == 0 {
		return ""
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if l.Price.LessThan(best) {
			best = l.Price
		}
	}
	return best.String()
}

// spread returns ask minus bid, or "" when either side is empty.
func spread(bid, ask string) string {
	if bid == "" || ask == "" {
		return ""
	}
	b, err := decimal.NewFromString(bid)
	if err != nil {
		return ""
	}
	a, err := decimal.NewFromString(ask)
	if err != nil {
		return ""
	}
	return a.Sub(b).String()
}

// numericOrNil maps "" to a SQL NULL for nullable numeric columns.
func numericOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
