package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/router"
)

// ChangeWriter consumes level changes from the router buffer and batches
// them into the book_level_changes table. This is the highest-volume
// stream: one row per mutated price level.
type ChangeWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	input *router.GrowableBuffer[model.LevelChange]
	db    *pgxpool.Pool

	batch       []levelChangeRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// NewChangeWriter creates a level change writer.
func NewChangeWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.LevelChange],
	db *pgxpool.Pool,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ChangeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]levelChangeRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming changes and writing to the database.
func (w *ChangeWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("change writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *ChangeWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping change writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("change writer stopped")
	case <-ctx.Done():
		w.logger.Warn("change writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current counters.
func (w *ChangeWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *ChangeWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			change, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleChange(change)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *ChangeWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleChange transforms and batches one level change.
func (w *ChangeWriter) handleChange(change model.LevelChange) {
	row := transformChange(change)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transformChange converts a model level change to its table row.
func transformChange(change model.LevelChange) levelChangeRow {
	row := levelChangeRow{
		ExchangeTS: change.ExchangeTS,
		ReceivedAt: change.ReceivedAt,
		AssetID:    change.AssetID,
		Market:     change.Market,
		Side:       change.Side,
		Price:      change.Price.String(),
		Size:       change.Size.String(),
	}
	if !change.BestBid.IsZero() {
		row.BestBid = change.BestBid.String()
	}
	if !change.BestAsk.IsZero() {
		row.BestAsk = change.BestAsk.String()
	}
	return row
}

// flush writes the current batch to the database.
func (w *ChangeWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]levelChangeRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("change batch insert failed", "error", err, "count", len(batch))
		w.metrics.RecordInsertError("book_level_changes")
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.metrics.RecordInserts("book_level_changes", len(batch)-conflicts, conflicts)
	w.metrics.ObserveFlush("book_level_changes", time.Since(start).Seconds())

	w.logger.Debug("flushed level changes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *ChangeWriter) batchInsert(rows []levelChangeRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO book_level_changes (exchange_ts, received_at, asset_id, market, side, price, size, best_bid, best_ask)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (asset_id, exchange_ts, side, price) DO NOTHING
		`, r.ExchangeTS, r.ReceivedAt, r.AssetID, r.Market, r.Side, r.Price, r.Size,
			numericOrNil(r.BestBid), numericOrNil(r.BestAsk))
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
