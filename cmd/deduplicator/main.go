// deduplicator consolidates time-series rows from a gatherer database
// into a central one. Multiple gatherer instances record overlapping
// data for redundancy; this tool walks each table by its timestamp
// cursor and re-inserts rows with ON CONFLICT DO NOTHING, so the target
// ends up with exactly one copy of everything.
//
// Usage:
//
//	deduplicator -source-dsn postgres://... -target-dsn postgres://... -interval 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tableSpec describes how one table is synced: which column the cursor
// walks and which columns are copied.
type tableSpec struct {
	name      string
	cursorCol string
	columns   []string
}

var tables = []tableSpec{
	{
		name:      "book_snapshots",
		cursorCol: "snapshot_ts",
		columns: []string{
			"snapshot_ts", "exchange_ts", "asset_id", "market", "source",
			"bids", "asks", "best_bid", "best_ask", "spread", "hash",
		},
	},
	{
		name:      "book_level_changes",
		cursorCol: "exchange_ts",
		columns: []string{
			"exchange_ts", "received_at", "asset_id", "market", "side",
			"price", "size", "best_bid", "best_ask",
		},
	},
	{
		name:      "trades",
		cursorCol: "exchange_ts",
		columns: []string{
			"trade_id", "exchange_ts", "received_at", "market", "asset_id",
			"side", "price", "size", "status", "outcome",
		},
	},
}

func main() {
	sourceDSN := flag.String("source-dsn", "", "gatherer database DSN (required)")
	targetDSN := flag.String("target-dsn", "", "consolidated database DSN (required)")
	tableList := flag.String("tables", "", "comma-separated tables to sync (default: all)")
	batchSize := flag.Int("batch", 5000, "rows per sync batch")
	interval := flag.Duration("interval", 0, "sync interval (0 = one pass and exit)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if *sourceDSN == "" || *targetDSN == "" {
		fmt.Fprintln(os.Stderr, "deduplicator: -source-dsn and -target-dsn are required")
		flag.Usage()
		os.Exit(2)
	}

	specs, err := selectTables(*tableList)
	if err != nil {
		logger.Error("bad table selection", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, err := pgxpool.New(ctx, *sourceDSN)
	if err != nil {
		logger.Error("connect source", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	target, err := pgxpool.New(ctx, *targetDSN)
	if err != nil {
		logger.Error("connect target", "error", err)
		os.Exit(1)
	}
	defer target.Close()

	d := &deduplicator{
		source:  source,
		target:  target,
		batch:   *batchSize,
		logger:  logger,
		cursors: make(map[string]int64),
	}

	if err := d.loadCursors(ctx, specs); err != nil {
		logger.Error("load cursors", "error", err)
		os.Exit(1)
	}

	for {
		for _, spec := range specs {
			copied, skipped, err := d.syncTable(ctx, spec)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("table sync failed", "table", spec.name, "error", err)
				continue
			}
			if copied+skipped > 0 {
				logger.Info("table synced",
					"table", spec.name,
					"copied", copied,
					"duplicates", skipped,
					"cursor", d.cursors[spec.name],
				)
			}
		}

		if *interval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}

func selectTables(list string) ([]tableSpec, error) {
	if list == "" {
		return tables, nil
	}

	byName := make(map[string]tableSpec, len(tables))
	for _, t := range tables {
		byName[t.name] = t
	}

	var specs []tableSpec
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		spec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown table %q", name)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

type deduplicator struct {
	source *pgxpool.Pool
	target *pgxpool.Pool
	batch  int
	logger *slog.Logger

	// cursors holds the highest cursor value already synced per table.
	cursors map[string]int64
}

// loadCursors resumes from the target's high-water marks so repeated
// runs only move new rows.
func (d *deduplicator) loadCursors(ctx context.Context, specs []tableSpec) error {
	for _, spec := range specs {
		var cursor *int64
		query := fmt.Sprintf("SELECT MAX(%s) FROM %s", spec.cursorCol, spec.name)
		if err := d.target.QueryRow(ctx, query).Scan(&cursor); err != nil {
			return fmt.Errorf("%s: %w", spec.name, err)
		}
		if cursor != nil {
			d.cursors[spec.name] = *cursor
		}
		d.logger.Debug("cursor loaded", "table", spec.name, "cursor", d.cursors[spec.name])
	}
	return nil
}

// syncTable walks the source past the cursor in batches until it runs
// dry. Rows already present in the target count as duplicates.
func (d *deduplicator) syncTable(ctx context.Context, spec tableSpec) (copied, skipped int64, err error) {
	cols := strings.Join(spec.columns, ", ")
	selectQuery := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s > $1 ORDER BY %s LIMIT $2",
		cols, spec.name, spec.cursorCol, spec.cursorCol,
	)

	placeholders := make([]string, len(spec.columns))
	for i := range spec.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		spec.name, cols, strings.Join(placeholders, ", "),
	)

	cursorIdx := 0 // cursor column is listed first except for trades
	for i, col := range spec.columns {
		if col == spec.cursorCol {
			cursorIdx = i
		}
	}

	for {
		rows, err := d.source.Query(ctx, selectQuery, d.cursors[spec.name], d.batch)
		if err != nil {
			return copied, skipped, fmt.Errorf("select: %w", err)
		}

		var values [][]any
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				rows.Close()
				return copied, skipped, fmt.Errorf("scan: %w", err)
			}
			values = append(values, vals)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return copied, skipped, fmt.Errorf("select: %w", err)
		}
		if len(values) == 0 {
			return copied, skipped, nil
		}

		batch := &pgx.Batch{}
		for _, vals := range values {
			batch.Queue(insertQuery, vals...)
		}

		results := d.target.SendBatch(ctx, batch)
		for range values {
			ct, err := results.Exec()
			if err != nil {
				results.Close()
				return copied, skipped, fmt.Errorf("insert: %w", err)
			}
			if ct.RowsAffected() == 0 {
				skipped++
			} else {
				copied++
			}
		}
		if err := results.Close(); err != nil {
			return copied, skipped, fmt.Errorf("close batch: %w", err)
		}

		last := values[len(values)-1][cursorIdx]
		next, ok := last.(int64)
		if !ok {
			return copied, skipped, fmt.Errorf("cursor column %s.%s is %T, want int64",
				spec.name, spec.cursorCol, last)
		}
		d.cursors[spec.name] = next
	}
}
