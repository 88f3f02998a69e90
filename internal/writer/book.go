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

// BookWriter consumes book snapshots from the router buffer and batches
// them into the book_snapshots table. Websocket and REST poller
// snapshots share the table, distinguished by the source column.
type BookWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	input *router.GrowableBuffer[model.BookSnapshot]
	db    *pgxpool.Pool

	batch       []bookSnapshotRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// NewBookWriter creates a book snapshot writer.
func NewBookWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.BookSnapshot],
	db *pgxpool.Pool,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]bookSnapshotRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming snapshots and writing to the database.
func (w *BookWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("book writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *BookWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping book writer")

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
		w.logger.Info("book writer stopped")
	case <-ctx.Done():
		w.logger.Warn("book writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current counters.
func (w *BookWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *BookWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			snap, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleSnapshot(snap)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *BookWriter) flushLoop() {
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

// handleSnapshot transforms and batches one snapshot.
func (w *BookWriter) handleSnapshot(snap model.BookSnapshot) {
	row := transformSnapshot(snap)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transformSnapshot converts a model snapshot to its table row, deriving
// the best-of-book columns.
func transformSnapshot(snap model.BookSnapshot) bookSnapshotRow {
	bid := bestBid(snap.Bids)
	ask := bestAsk(snap.Asks)

	return bookSnapshotRow{
		SnapshotTS: snap.SnapshotTS,
		ExchangeTS: snap.ExchangeTS,
		AssetID:    snap.AssetID,
		Market:     snap.Market,
		Source:     snap.Source,
		Bids:       levelsToJSON(snap.Bids),
		Asks:       levelsToJSON(snap.Asks),
		BestBid:    bid,
		BestAsk:    ask,
		Spread:     spread(bid, ask),
		Hash:       snap.Hash,
	}
}

// flush writes the current batch to the database.
func (w *BookWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]bookSnapshotRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("snapshot batch insert failed", "error", err, "count", len(batch))
		w.metrics.RecordInsertError("book_snapshots")
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

	w.metrics.RecordInserts("book_snapshots", len(batch)-conflicts, conflicts)
	w.metrics.ObserveFlush("book_snapshots", time.Since(start).Seconds())

	w.logger.Debug("flushed book snapshots",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *BookWriter) batchInsert(rows []bookSnapshotRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO book_snapshots (snapshot_ts, exchange_ts, asset_id, market, source, bids, asks, best_bid, best_ask, spread, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (asset_id, snapshot_ts, source) DO NOTHING
		`, r.SnapshotTS, r.ExchangeTS, r.AssetID, r.Market, r.Source, r.Bids, r.Asks,
			numericOrNil(r.BestBid), numericOrNil(r.BestAsk), numericOrNil(r.Spread), r.Hash)
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
