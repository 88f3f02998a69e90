package market

import (
	"context"

	"github.com/rickgao/polymarket-data/internal/model"
)

// ChangeType classifies a catalog change.
type ChangeType string

const (
	// ChangeListed marks a tradable market seen for the first time.
	ChangeListed ChangeType = "listed"
	// ChangeDelisted marks a market that stopped being tradable.
	ChangeDelisted ChangeType = "delisted"
	// ChangeUpdated marks a tradable market whose metadata changed.
	ChangeUpdated ChangeType = "updated"
)

// CatalogChange is one market lifecycle notification. Consumers react
// by starting streams for new token IDs; a live stream's subscription
// list is never mutated.
type CatalogChange struct {
	ConditionID string
	Type        ChangeType
	Market      *model.Market
}

// Registry is the in-memory market catalog: REST-discovered markets and
// their outcome tokens, kept current by periodic reconciliation.
type Registry interface {
	// Start performs the blocking initial sync, then reconciles in the
	// background until Stop.
	Start(ctx context.Context) error

	// Stop shuts down background reconciliation.
	Stop(ctx context.Context) error

	// ActiveMarkets returns all currently tradable markets.
	ActiveMarkets() []model.Market

	// Market returns one market by condition ID.
	Market(conditionID string) (model.Market, bool)

	// TokenIDs returns every outcome token of every tradable market, in
	// stable order.
	TokenIDs() []string

	// TokenChunks splits TokenIDs into subscription sets of at most
	// size IDs each.
	TokenChunks(size int) [][]string

	// Changes returns the catalog change feed. Notifications are
	// dropped, not blocked on, when the consumer falls behind.
	Changes() <-chan CatalogChange
}
