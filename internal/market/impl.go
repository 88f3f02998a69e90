package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/model"
)

// Config controls the registry's discovery behaviour.
type Config struct {
	// ReconcileInterval is how often the catalog is re-fetched and
	// diffed against the local state.
	ReconcileInterval time.Duration

	// SamplingOnly restricts discovery to the sampling-markets listing,
	// a much smaller set useful for low-volume deployments.
	SamplingOnly bool

	// InitialLoadTimeout bounds the blocking sync inside Start.
	InitialLoadTimeout time.Duration
}

// DefaultConfig returns production discovery settings.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  15 * time.Minute,
		InitialLoadTimeout: 5 * time.Minute,
	}
}

type registryImpl struct {
	cfg    Config
	rest   *api.Client
	logger *slog.Logger
	state  *catalogState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates a market catalog backed by the CLOB REST API.
func NewRegistry(cfg Config, rest *api.Client, logger *slog.Logger) Registry {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultConfig().ReconcileInterval
	}
	if cfg.InitialLoadTimeout <= 0 {
		cfg.InitialLoadTimeout = DefaultConfig().InitialLoadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &registryImpl{
		cfg:    cfg,
		rest:   rest,
		logger: logger.With("component", "market_registry"),
		state:  newState(),
		done:   make(chan struct{}),
	}
}

func (r *registryImpl) Start(ctx context.Context) error {
	r.logger.Info("starting market registry",
		"reconcile_interval", r.cfg.ReconcileInterval,
		"sampling_only", r.cfg.SamplingOnly)

	syncCtx, cancel := context.WithTimeout(ctx, r.cfg.InitialLoadTimeout)
	defer cancel()
	if err := r.sync(syncCtx); err != nil {
		return fmt.Errorf("initial market sync: %w", err)
	}

	r.logger.Info("initial sync complete",
		"active_markets", len(r.state.active),
		"tokens", len(r.TokenIDs()))

	loopCtx, loopCancel := context.WithCancel(context.Background())
	r.cancel = loopCancel
	go r.reconcileLoop(loopCtx)

	return nil
}

func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	select {
	case <-r.done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("market registry stop: %w", ctx.Err())
	}
}

func (r *registryImpl) reconcileLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.sync(ctx); err != nil {
				r.logger.Error("catalog reconciliation failed", "error", err)
			}
		}
	}
}

func (r *registryImpl) ActiveMarkets() []model.Market {
	return r.state.activeMarkets()
}

func (r *registryImpl) Market(conditionID string) (model.Market, bool) {
	return r.state.market(conditionID)
}

func (r *registryImpl) TokenIDs() []string {
	return r.state.tokenIDs()
}

func (r *registryImpl) TokenChunks(size int) [][]string {
	ids := r.state.tokenIDs()
	if size <= 0 {
		size = len(ids)
	}
	if len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func (r *registryImpl) Changes() <-chan CatalogChange {
	return r.state.changes
}
