package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/polymarket-data/internal/book"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/ws"
)

// MarketSource yields decoded market-feed events; *ws.Stream[ws.Event]
// satisfies it.
type MarketSource interface {
	Next(ctx context.Context) (ws.Event, error)
}

// UserSource yields decoded user-feed events; *ws.Stream[ws.UserEvent]
// satisfies it.
type UserSource interface {
	Next(ctx context.Context) (ws.UserEvent, error)
}

// Router drains reconnecting streams and fans decoded events out into
// per-family buffers consumed by the writers. Message-scoped decode
// errors and session drops are counted and logged here; reconnection
// itself happens inside the streams.
type Router struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	books   *GrowableBuffer[model.BookSnapshot]
	changes *GrowableBuffer[model.LevelChange]
	trades  *GrowableBuffer[model.Trade]

	keeper *book.Keeper

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	eventsRouted  int64
	decodeErrors  int64
	sessionDrops  int64
	streamsEnded  int64
	unknownEvents int64
}

// Buffers provides access to output buffers for writers. The poller
// also feeds its REST snapshots through Books.
type Buffers struct {
	Books   *GrowableBuffer[model.BookSnapshot]
	Changes *GrowableBuffer[model.LevelChange]
	Trades  *GrowableBuffer[model.Trade]
}

// New creates a router. A nil metrics handle disables instrumentation.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		books:   NewGrowableBuffer[model.BookSnapshot](cfg.BookBufferSize),
		changes: NewGrowableBuffer[model.LevelChange](cfg.ChangeBufferSize),
		trades:  NewGrowableBuffer[model.Trade](cfg.TradeBufferSize),
		keeper:  book.NewKeeper(),
	}
}

// Start prepares the router for stream attachment.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.logger.Info("router started",
		"book_buffer", r.cfg.BookBufferSize,
		"change_buffer", r.cfg.ChangeBufferSize,
		"trade_buffer", r.cfg.TradeBufferSize,
	)
	return nil
}

// AddMarketStream spawns a goroutine draining src until it ends or the
// router stops. Call after Start; safe to call while running, which is
// how new catalog chunks join a live gatherer.
func (r *Router) AddMarketStream(name string, src MarketSource) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consumeMarket(name, src)
	}()
}

// AddUserStream spawns a goroutine draining a user-feed stream.
func (r *Router) AddUserStream(name string, src UserSource) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consumeUser(name, src)
	}()
}

// Stop shuts the router down and closes the output buffers so writers
// can drain and exit.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("router stopped")
	case <-ctx.Done():
		r.logger.Warn("router stop timed out")
	}

	r.books.Close()
	r.changes.Close()
	r.trades.Close()

	return nil
}

// Buffers returns the output buffers.
func (r *Router) Buffers() Buffers {
	return Buffers{Books: r.books, Changes: r.changes, Trades: r.trades}
}

// LiveBooks returns the in-memory books maintained from the market feed.
func (r *Router) LiveBooks() *book.Keeper {
	return r.keeper
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		EventsRouted:  r.eventsRouted,
		DecodeErrors:  r.decodeErrors,
		SessionDrops:  r.sessionDrops,
		StreamsEnded:  r.streamsEnded,
		UnknownEvents: r.unknownEvents,
		Books:         r.books.Stats(),
		Changes:       r.changes.Stats(),
		Trades:        r.trades.Stats(),
	}
}

// consumeMarket drains one market stream until it ends.
func (r *Router) consumeMarket(name string, src MarketSource) {
	for {
		ev, err := src.Next(r.ctx)
		if err != nil {
			if !r.handleStreamError(name, "market", err) {
				return
			}
			continue
		}
		r.routeMarket(ev)
	}
}

// consumeUser drains one user stream until it ends.
func (r *Router) consumeUser(name string, src UserSource) {
	for {
		ev, err := src.Next(r.ctx)
		if err != nil {
			if !r.handleStreamError(name, "user", err) {
				return
			}
			continue
		}
		r.routeUser(ev)
	}
}

// handleStreamError classifies one error item from a stream and reports
// whether consumption should continue.
func (r *Router) handleStreamError(name, feed string, err error) bool {
	if r.ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ws.ErrStreamEnded) {
		r.logger.Warn("stream ended", "stream", name)
		r.mu.Lock()
		r.streamsEnded++
		r.mu.Unlock()
		return false
	}

	var de *ws.DecodeError
	var fe *ws.UnsupportedFrameError
	if errors.As(err, &de) || errors.As(err, &fe) {
		r.logger.Debug("undecodable message", "stream", name, "error", err)
		r.metrics.RecordDecodeFailure(feed)
		r.mu.Lock()
		r.decodeErrors++
		r.mu.Unlock()
		return true
	}

	// Session-ending error; the stream reconnects on its own.
	r.logger.Warn("session dropped", "stream", name, "error", err)
	r.metrics.RecordSessionDrop(feed)
	r.mu.Lock()
	r.sessionDrops++
	r.mu.Unlock()
	return true
}

// routeMarket fans one market event into the book buffers and folds it
// into the live books.
func (r *Router) routeMarket(ev ws.Event) {
	r.keeper.Apply(ev)

	switch e := ev.(type) {
	case *ws.BookEvent:
		r.books.Send(snapshotFromEvent(e))
		r.metrics.RecordEvent("market", "book")
	case *ws.PriceChangeEvent:
		for _, change := range changesFromEvent(e) {
			r.changes.Send(change)
		}
		r.metrics.RecordEvent("market", "price_change")
	default:
		r.mu.Lock()
		r.unknownEvents++
		r.mu.Unlock()
		r.logger.Debug("unroutable market event", "type", fmt.Sprintf("%T", ev))
		return
	}

	r.mu.Lock()
	r.eventsRouted++
	r.mu.Unlock()
	r.metrics.SetBufferDepth("books", r.books.Len())
	r.metrics.SetBufferDepth("changes", r.changes.Len())
}

// routeUser fans one user event into the trade buffer. Order lifecycle
// events are observed but not persisted.
func (r *Router) routeUser(ev ws.UserEvent) {
	switch e := ev.(type) {
	case *ws.TradeEvent:
		r.trades.Send(tradeFromEvent(e))
		r.metrics.RecordEvent("user", "trade")
	case *ws.OrderEvent:
		r.logger.Debug("order update",
			"order_id", e.ID,
			"market", e.Market,
			"type", e.OrderType,
		)
		r.metrics.RecordEvent("user", "order")
		return
	default:
		r.mu.Lock()
		r.unknownEvents++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.eventsRouted++
	r.mu.Unlock()
	r.metrics.SetBufferDepth("trades", r.trades.Len())
}
