package ws

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side identifies which half of the book a level or fill belongs to.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PriceLevel is one price point in an order book. The server sends price
// and size as decimal strings; they are parsed without a float round-trip.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Event is one decoded market-feed update: either a *BookEvent or a
// *PriceChangeEvent, distinguished by type switch.
type Event interface {
	isEvent()
}

// BookEvent is a full order book snapshot for one asset. The server sends
// it once after subscribing and again whenever the book must be rebuilt.
type BookEvent struct {
	EventType string       `json:"event_type"` // always "book"
	Market    string       `json:"market"`     // condition ID
	AssetID   string       `json:"asset_id"`   // token ID
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"` // unix milliseconds, as sent
	Hash      string       `json:"hash"`
}

func (*BookEvent) isEvent() {}

// PriceChange is one level delta inside a PriceChangeEvent. A size of
// exactly zero removes the level; any other size replaces it.
type PriceChange struct {
	AssetID string          `json:"asset_id"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Side    Side            `json:"side"`
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
}

// Removed reports whether this change deletes its price level.
func (c PriceChange) Removed() bool { return c.Size.IsZero() }

// PriceChangeEvent carries an ordered batch of level deltas for one market.
type PriceChangeEvent struct {
	EventType    string        `json:"event_type"` // always "price_change"
	Market       string        `json:"market"`
	PriceChanges []PriceChange `json:"price_changes"`
	Timestamp    string        `json:"timestamp"`
}

func (*PriceChangeEvent) isEvent() {}

// eventEnvelope extracts the discriminator before full decoding.
type eventEnvelope struct {
	EventType string `json:"event_type"`
}

// decodeMarketText turns one text frame into at most one Event.
//
// The server usually wraps events in a single-element JSON array, so an
// array parse is tried first: a non-empty array decodes element zero only
// (trailing elements are ignored), an empty array produces nothing, and
// anything that is not an array is decoded as a single event. A nil, nil
// return means the frame carried nothing to emit.
func decodeMarketText(data []byte) (Event, error) {
	payload, empty := firstInBatch(data)
	if empty {
		return nil, nil
	}
	return decodeMarketEvent(payload)
}

// decodeMarketEvent decodes one event object, dispatching on event_type.
func decodeMarketEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newDecodeError(data, err)
	}

	switch env.EventType {
	case "book":
		var ev BookEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, newDecodeError(data, err)
		}
		return &ev, nil
	case "price_change":
		var ev PriceChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, newDecodeError(data, err)
		}
		return &ev, nil
	default:
		return nil, newDecodeError(data, fmt.Errorf("unknown event_type %q", env.EventType))
	}
}

// firstInBatch resolves the array-batch convention: when data parses as a
// JSON array, the first element is returned (empty=true for an empty
// array); otherwise data itself is returned for single-object decoding.
func firstInBatch(data []byte) (payload []byte, empty bool) {
	var batch []json.RawMessage
	if err := json.Unmarshal(data, &batch); err == nil {
		if len(batch) == 0 {
			return nil, true
		}
		return batch[0], false
	}
	return data, false
}
