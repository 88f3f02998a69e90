package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/model"
)

// TokenSource provides the token IDs to poll. The market registry
// satisfies this.
type TokenSource interface {
	TokenIDs() []string
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot model.BookSnapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.BookSnapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s model.BookSnapshot) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 15m)
	Concurrency int           // Max in-flight batch requests (default: 4)
	BatchSize   int           // Tokens per POST /books call (default: 50)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 4,
		BatchSize:   50,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically fetches full order books over REST, independent
// of the websocket feed. The snapshots it produces carry source "rest"
// and back-fill any books the stream missed.
type Poller struct {
	cfg     Config
	client  *api.Client
	tokens  TokenSource
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, tokens TokenSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		tokens:  tokens,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("book poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"batch_size", p.cfg.BatchSize,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("book poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches books for every active token, batched and with
// bounded concurrency.
func (p *Poller) pollAll() {
	start := time.Now()

	ids := p.tokens.TokenIDs()
	if len(ids) == 0 {
		p.logger.Debug("no tokens to poll")
		return
	}

	var fetched, errors atomic.Int64

	g, ctx := errgroup.WithContext(p.ctx)
	g.SetLimit(p.cfg.Concurrency)

	for batchStart := 0; batchStart < len(ids); batchStart += p.cfg.BatchSize {
		end := batchStart + p.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[batchStart:end]

		g.Go(func() error {
			n, err := p.pollBatch(ctx, batch)
			fetched.Add(int64(n))
			if err != nil {
				p.logger.Warn("failed to poll book batch",
					"tokens", len(batch),
					"error", err,
				)
				errors.Add(1)
			}
			// Batch failures are counted, not fatal to the cycle.
			return nil
		})
	}

	g.Wait()

	p.logger.Info("poll cycle complete",
		"tokens", len(ids),
		"fetched", fetched.Load(),
		"batch_errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollBatch fetches one batch of books and hands the snapshots off.
// Returns how many snapshots were delivered.
func (p *Poller) pollBatch(ctx context.Context, tokenIDs []string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	books, err := p.client.GetBooks(reqCtx, tokenIDs)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range books {
		snapshot := books[i].ToSnapshot("rest")
		if p.handler == nil {
			continue
		}
		if err := p.handler.HandleSnapshot(snapshot); err != nil {
			return delivered, err
		}
		delivered++
	}

	return delivered, nil
}
