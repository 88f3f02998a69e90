package api

import "github.com/shopspring/decimal"

// MarketsPage from GET /markets and GET /sampling-markets
type MarketsPage struct {
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
	NextCursor string      `json:"next_cursor"`
	Data       []APIMarket `json:"data"`
}

// APIMarket represents a market from the CLOB API.
type APIMarket struct {
	ConditionID   string `json:"condition_id"`
	QuestionID    string `json:"question_id"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	MarketSlug    string `json:"market_slug"`
	Category      string `json:"category"`
	EndDateISO    string `json:"end_date_iso"`
	GameStartTime string `json:"game_start_time"`

	Active          bool `json:"active"`
	Closed          bool `json:"closed"`
	Archived        bool `json:"archived"`
	AcceptingOrders bool `json:"accepting_orders"`
	EnableOrderBook bool `json:"enable_order_book"`
	NegRisk         bool `json:"neg_risk"`

	// Sent as JSON numbers or decimal strings depending on endpoint
	// version; decimal.Decimal accepts both.
	MinimumOrderSize decimal.Decimal `json:"minimum_order_size"`
	MinimumTickSize  decimal.Decimal `json:"minimum_tick_size"`

	SecondsDelay int        `json:"seconds_delay"`
	FPMM         string     `json:"fpmm"`
	Icon         string     `json:"icon"`
	Tokens       []APIToken `json:"tokens"`
	Tags         []string   `json:"tags"`
}

// APIToken represents one outcome token of a market.
type APIToken struct {
	TokenID string          `json:"token_id"`
	Outcome string          `json:"outcome"`
	Price   decimal.Decimal `json:"price"`
	Winner  bool            `json:"winner"`
}

// BookLevel is one price level in an order book summary.
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSummary from GET /book and POST /books
type OrderBookSummary struct {
	Market    string      `json:"market"`
	AssetID   string      `json:"asset_id"`
	Timestamp string      `json:"timestamp"` // unix milliseconds, as sent
	Hash      string      `json:"hash"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
}

// BookParams identifies one book in a POST /books request.
type BookParams struct {
	TokenID string `json:"token_id"`
}

// MidpointResponse from GET /midpoint
type MidpointResponse struct {
	Mid decimal.Decimal `json:"mid"`
}

// PriceResponse from GET /last-trade-price
type PriceResponse struct {
	Price decimal.Decimal `json:"price"`
	Side  string          `json:"side"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	NextCursor string
}
