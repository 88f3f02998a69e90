package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Relational Types
// -----------------------------------------------------------------------------

// Market represents one tradeable condition (e.g., "Will X win the election").
type Market struct {
	ConditionID      string          // Primary key ("0x..." hash)
	QuestionID       string          // Question hash
	Slug             string          // URL slug
	Question         string          // Display question
	Category         string          // Category (e.g., "Politics")
	Active           bool            // Listed on the exchange
	Closed           bool            // Resolved or delisted
	AcceptingOrders  bool            // Order placement enabled
	NegRisk          bool            // Part of a negative-risk group
	MinimumOrderSize decimal.Decimal // Smallest accepted order size
	MinimumTickSize  decimal.Decimal // Price increment
	EndTS            int64           // Scheduled end time (µs since epoch), 0 if unset
	GameStartTS      int64           // Game start for sports markets (µs since epoch), 0 if unset
	UpdatedAt        int64           // Last refresh (µs since epoch)
}

// Token represents one outcome token of a market. Binary markets carry two.
type Token struct {
	TokenID     string          // Primary key (decimal string, up to 78 digits)
	ConditionID string          // Foreign key to Market
	Outcome     string          // Display outcome (e.g., "Yes", "No")
	Winner      bool            // Settled as the winning outcome
	Price       decimal.Decimal // Last known price at refresh
	UpdatedAt   int64           // Last refresh (µs since epoch)
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// PriceLevel represents a single price level in an order book.
type PriceLevel struct {
	Price decimal.Decimal // Price in dollars (0 < p < 1)
	Size  decimal.Decimal // Quantity at this price
}

// BookSnapshot represents a full order book state at a point in time.
type BookSnapshot struct {
	SnapshotTS int64        // Capture timestamp (µs since epoch)
	ExchangeTS int64        // Exchange timestamp (µs since epoch), 0 if not provided
	AssetID    string       // Token ID
	Market     string       // Condition ID
	Source     string       // "ws" or "rest"
	Bids       []PriceLevel // Buy side, best first
	Asks       []PriceLevel // Sell side, best first
	Hash       string       // Exchange book hash
}

// LevelChange represents one price level mutation. A zero Size means the
// level was removed.
type LevelChange struct {
	ExchangeTS int64           // Exchange timestamp (µs since epoch)
	ReceivedAt int64           // Gatherer receive timestamp (µs since epoch)
	AssetID    string          // Token ID
	Market     string          // Condition ID
	Side       string          // "BUY" or "SELL"
	Price      decimal.Decimal // Affected price level
	Size       decimal.Decimal // New size at the level, zero = removed
	BestBid    decimal.Decimal // Best bid after the change
	BestAsk    decimal.Decimal // Best ask after the change
}

// Trade represents an executed trade from the user feed.
type Trade struct {
	TradeID    uuid.UUID       // Primary key
	ExchangeTS int64           // Exchange match time (µs since epoch)
	ReceivedAt int64           // Gatherer receive timestamp (µs since epoch)
	Market     string          // Condition ID
	AssetID    string          // Token ID
	Side       string          // Taker side: "BUY" or "SELL"
	Price      decimal.Decimal // Execution price
	Size       decimal.Decimal // Executed size
	Status     string          // MATCHED, MINED, CONFIRMED, FAILED
	Outcome    string          // Outcome label of the traded token
}
