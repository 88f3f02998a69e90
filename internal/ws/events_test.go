package ws

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestDecodeMarketText_Book(t *testing.T) {
	data := `{
		"event_type": "book",
		"market": "0xbd31dc8a20211944f6b70f31557f1001557b59905b7738e1d9673cac128049ce",
		"asset_id": "65818619657568813474341868652308942079804919287380422192892211131408793125422",
		"bids": [
			{"price": "0.48", "size": "30"},
			{"price": "0.47", "size": "120.5"}
		],
		"asks": [
			{"price": "0.52", "size": "25"}
		],
		"timestamp": "1700000000123",
		"hash": "0x0123456789abcdef"
	}`

	ev, err := decodeMarketText([]byte(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	book, ok := ev.(*BookEvent)
	if !ok {
		t.Fatalf("got %T, want *BookEvent", ev)
	}
	if book.EventType != "book" {
		t.Errorf("EventType = %q, want book", book.EventType)
	}
	if book.AssetID != "65818619657568813474341868652308942079804919287380422192892211131408793125422" {
		t.Errorf("AssetID = %q", book.AssetID)
	}
	if len(book.Bids) != 2 {
		t.Fatalf("len(Bids) = %d, want 2", len(book.Bids))
	}
	if !book.Bids[1].Size.Equal(mustDecimal(t, "120.5")) {
		t.Errorf("Bids[1].Size = %s, want 120.5", book.Bids[1].Size)
	}
	if len(book.Asks) != 1 {
		t.Fatalf("len(Asks) = %d, want 1", len(book.Asks))
	}
	if !book.Asks[0].Price.Equal(mustDecimal(t, "0.52")) {
		t.Errorf("Asks[0].Price = %s, want 0.52", book.Asks[0].Price)
	}
	if book.Timestamp != "1700000000123" {
		t.Errorf("Timestamp = %q, want 1700000000123", book.Timestamp)
	}
}

func TestDecodeMarketText_PriceChangeBatch(t *testing.T) {
	// Wire frames arrive as single-element arrays.
	data := `[{
		"event_type": "price_change",
		"market": "0xbd31",
		"price_changes": [
			{"asset_id": "100", "price": "0.51", "size": "40", "side": "BUY", "best_bid": "0.51", "best_ask": "0.53"},
			{"asset_id": "100", "price": "0.49", "size": "0", "side": "SELL", "best_bid": "0.51", "best_ask": "0.53"}
		],
		"timestamp": "1700000000456"
	}]`

	ev, err := decodeMarketText([]byte(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	pc, ok := ev.(*PriceChangeEvent)
	if !ok {
		t.Fatalf("got %T, want *PriceChangeEvent", ev)
	}
	if len(pc.PriceChanges) != 2 {
		t.Fatalf("len(PriceChanges) = %d, want 2", len(pc.PriceChanges))
	}

	first := pc.PriceChanges[0]
	if first.Side != SideBuy {
		t.Errorf("Side = %q, want %q", first.Side, SideBuy)
	}
	if first.Removed() {
		t.Error("change with size 40 reported Removed")
	}
	if !first.BestAsk.Equal(mustDecimal(t, "0.53")) {
		t.Errorf("BestAsk = %s, want 0.53", first.BestAsk)
	}

	second := pc.PriceChanges[1]
	if !second.Removed() {
		t.Error("change with size 0 not reported Removed")
	}
}

func TestDecodeMarketText_EmptyArray(t *testing.T) {
	ev, err := decodeMarketText([]byte(`[]`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev != nil {
		t.Errorf("got %T, want nil event for empty batch", ev)
	}
}

func TestDecodeMarketText_ArrayTakesFirst(t *testing.T) {
	data := `[
		{"event_type": "book", "asset_id": "first", "bids": [], "asks": []},
		{"event_type": "book", "asset_id": "second", "bids": [], "asks": []}
	]`

	ev, err := decodeMarketText([]byte(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	book, ok := ev.(*BookEvent)
	if !ok {
		t.Fatalf("got %T, want *BookEvent", ev)
	}
	if book.AssetID != "first" {
		t.Errorf("AssetID = %q, want first", book.AssetID)
	}
}

func TestDecodeMarketText_UnknownEventType(t *testing.T) {
	_, err := decodeMarketText([]byte(`{"event_type": "tick_size_change", "asset_id": "100"}`))
	if err == nil {
		t.Fatal("expected error for unknown event_type")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("got %T, want *DecodeError", err)
	}
	if !strings.Contains(de.Error(), "tick_size_change") {
		t.Errorf("error %q does not name the event type", de.Error())
	}
}

func TestDecodeMarketText_Malformed(t *testing.T) {
	_, err := decodeMarketText([]byte(`{"event_type": `))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("got %T, want *DecodeError", err)
	}
}

func TestNewDecodeError_TruncatesPayload(t *testing.T) {
	long := strings.Repeat("x", payloadSnippet*3)
	de := newDecodeError([]byte(long), errors.New("boom"))
	if len(de.Payload) != payloadSnippet {
		t.Errorf("len(Payload) = %d, want %d", len(de.Payload), payloadSnippet)
	}

	short := newDecodeError([]byte("abc"), errors.New("boom"))
	if short.Payload != "abc" {
		t.Errorf("Payload = %q, want abc", short.Payload)
	}
}

func TestMessageScoped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"decode", &DecodeError{Payload: "x", Err: errors.New("bad")}, true},
		{"unsupported frame", &UnsupportedFrameError{FrameType: 2}, true},
		{"wrapped decode", fmt.Errorf("next: %w", &DecodeError{Err: errors.New("bad")}), true},
		{"transport", &TransportError{Op: "read", Err: errors.New("reset")}, false},
		{"closed", &ClosedError{Code: 1000}, false},
		{"plain", errors.New("other"), false},
	}

	for _, tt := range tests {
		if got := messageScoped(tt.err); got != tt.want {
			t.Errorf("%s: messageScoped = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	te := &TransportError{Op: "dial", Err: errors.New("connection refused")}
	if got := te.Error(); got != "websocket dial: connection refused" {
		t.Errorf("TransportError.Error() = %q", got)
	}

	ce := &ClosedError{Code: 1001, Text: "going away"}
	if got := ce.Error(); got != "connection closed (code 1001): going away" {
		t.Errorf("ClosedError.Error() = %q", got)
	}

	bare := &ClosedError{Code: 1006}
	if got := bare.Error(); got != "connection closed (code 1006)" {
		t.Errorf("ClosedError.Error() = %q", got)
	}

	fe := &UnsupportedFrameError{FrameType: 2}
	if got := fe.Error(); got != "unsupported frame type 2" {
		t.Errorf("UnsupportedFrameError.Error() = %q", got)
	}
}
