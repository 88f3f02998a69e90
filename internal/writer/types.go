package writer

import (
	"time"

	"github.com/google/uuid"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
	}
}

// bookSnapshotRow is a row for the book_snapshots table. Prices travel
// as decimal strings; pgx sends them to numeric columns as text.
type bookSnapshotRow struct {
	SnapshotTS int64 // Microseconds
	ExchangeTS int64 // Microseconds, 0 = unknown
	AssetID    string
	Market     string
	Source     string // "ws" or "rest"
	Bids       []byte // JSONB: [{"price":"0.48","size":"100"}, ...]
	Asks       []byte // JSONB
	BestBid    string // "" = book side empty (NULL)
	BestAsk    string
	Spread     string
	Hash       string
}

// levelChangeRow is a row for the book_level_changes table. A zero Size
// records a level removal.
type levelChangeRow struct {
	ExchangeTS int64
	ReceivedAt int64
	AssetID    string
	Market     string
	Side       string // "BUY" or "SELL"
	Price      string
	Size       string
	BestBid    string
	BestAsk    string
}

// tradeRow is a row for the trades table.
type tradeRow struct {
	TradeID    uuid.UUID
	ExchangeTS int64
	ReceivedAt int64
	Market     string
	AssetID    string
	Side       string
	Price      string
	Size       string
	Status     string
	Outcome    string
}

// WriterMetrics holds cumulative counters for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
