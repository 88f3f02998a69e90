package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/model"
)

// mockTokenSource returns a fixed token list.
type mockTokenSource struct {
	ids []string
}

func (m *mockTokenSource) TokenIDs() []string {
	return m.ids
}

// bookServer answers POST /books with one book per requested token.
func bookServer(t *testing.T, delay time.Duration, inFlight, maxInFlight *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books" {
			http.NotFound(w, r)
			return
		}

		if inFlight != nil {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := maxInFlight.Load()
				if current <= old || maxInFlight.CompareAndSwap(old, current) {
					break
				}
			}
		}
		if delay > 0 {
			time.Sleep(delay)
		}

		var params []api.BookParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		books := make([]api.OrderBookSummary, len(params))
		for i, p := range params {
			books[i] = api.OrderBookSummary{
				Market:    "0xabc",
				AssetID:   p.TokenID,
				Timestamp: "1700000000000",
			}
		}
		json.NewEncoder(w).Encode(books)
	}))
}

func TestPollAll(t *testing.T) {
	server := bookServer(t, 0, nil, nil)
	defer server.Close()

	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))
	tokens := &mockTokenSource{ids: []string{"1", "2", "3", "4", "5"}}

	var snapshots atomic.Int32
	handler := SnapshotHandlerFunc(func(s model.BookSnapshot) error {
		if s.Source != "rest" {
			t.Errorf("Source = %q, want rest", s.Source)
		}
		snapshots.Add(1)
		return nil
	})

	cfg := Config{
		Interval:    time.Hour, // triggered manually
		Concurrency: 2,
		BatchSize:   2,
		Timeout:     5 * time.Second,
	}
	p := New(cfg, client, tokens, handler, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := snapshots.Load(); got != 5 {
		t.Errorf("snapshots = %d, want 5", got)
	}
}

func TestPollAllNoTokens(t *testing.T) {
	server := bookServer(t, 0, nil, nil)
	defer server.Close()

	var called atomic.Bool
	p := New(Config{}, api.NewClient(server.URL), &mockTokenSource{},
		SnapshotHandlerFunc(func(model.BookSnapshot) error {
			called.Store(true)
			return nil
		}), nil)
	p.ctx = context.Background()

	p.pollAll()

	if called.Load() {
		t.Error("handler called with no tokens to poll")
	}
}

func TestStartStop(t *testing.T) {
	server := bookServer(t, 0, nil, nil)
	defer server.Close()

	client := api.NewClient(server.URL)
	tokens := &mockTokenSource{ids: []string{"1"}}

	var called atomic.Bool
	handler := SnapshotHandlerFunc(func(model.BookSnapshot) error {
		called.Store(true)
		return nil
	})

	cfg := Config{
		Interval:    100 * time.Millisecond,
		Concurrency: 2,
		BatchSize:   10,
		Timeout:     5 * time.Second,
	}
	p := New(cfg, client, tokens, handler, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Wait for the immediate first poll.
	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if !called.Load() {
		t.Error("handler was never called")
	}
}

func TestConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := bookServer(t, 50*time.Millisecond, &inFlight, &maxInFlight)
	defer server.Close()

	client := api.NewClient(server.URL)

	// 20 tokens, batch size 1: 20 requests through a limit of 5.
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	tokens := &mockTokenSource{ids: ids}

	cfg := Config{
		Interval:    time.Hour,
		Concurrency: 5,
		BatchSize:   1,
		Timeout:     5 * time.Second,
	}
	p := New(cfg, client, tokens, SnapshotHandlerFunc(func(model.BookSnapshot) error {
		return nil
	}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := maxInFlight.Load(); got > 5 {
		t.Errorf("maxInFlight = %d, want <= 5", got)
	}
}

func TestBatchErrorDoesNotAbortCycle(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n == 1 {
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		var params []api.BookParams
		json.NewDecoder(r.Body).Decode(&params)
		books := make([]api.OrderBookSummary, len(params))
		for i, p := range params {
			books[i] = api.OrderBookSummary{AssetID: p.TokenID}
		}
		json.NewEncoder(w).Encode(books)
	}))
	defer server.Close()

	// No retries so the first batch fails outright.
	client := api.NewClient(server.URL, api.WithRetries(0, 0))
	tokens := &mockTokenSource{ids: []string{"1", "2"}}

	var snapshots atomic.Int32
	cfg := Config{
		Interval:    time.Hour,
		Concurrency: 1, // serialize so request order is deterministic
		BatchSize:   1,
		Timeout:     5 * time.Second,
	}
	p := New(cfg, client, tokens, SnapshotHandlerFunc(func(model.BookSnapshot) error {
		snapshots.Add(1)
		return nil
	}), nil)
	p.ctx = context.Background()

	p.pollAll()

	if got := snapshots.Load(); got != 1 {
		t.Errorf("snapshots = %d, want 1 (second batch survives first batch failure)", got)
	}
}
