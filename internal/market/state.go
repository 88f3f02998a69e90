package market

import (
	"sort"
	"sync"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// catalogState holds the registry's market and token tables. All access
// goes through its mutex; the registry goroutines are the only writers.
type catalogState struct {
	mu         sync.RWMutex
	markets    map[string]model.Market  // by condition ID
	tokens     map[string][]model.Token // by condition ID
	active     map[string]struct{}      // tradable condition IDs
	lastSyncAt time.Time

	changes chan CatalogChange
}

func newState() *catalogState {
	return &catalogState{
		markets: make(map[string]model.Market),
		tokens:  make(map[string][]model.Token),
		active:  make(map[string]struct{}),
		changes: make(chan CatalogChange, 256),
	}
}

// upsertLocked stores a market and its tokens. Callers hold s.mu.
func (s *catalogState) upsertLocked(m model.Market, tokens []model.Token) {
	s.markets[m.ConditionID] = m
	s.tokens[m.ConditionID] = tokens
	if tradable(m) {
		s.active[m.ConditionID] = struct{}{}
	} else {
		delete(s.active, m.ConditionID)
	}
}

// delistLocked drops a market from the active set but keeps its
// metadata for later lookups. Callers hold s.mu.
func (s *catalogState) delistLocked(conditionID string) {
	delete(s.active, conditionID)
}

// notifyChange delivers a change without blocking; a full channel drops
// the notification, and reconciliation catches stragglers next cycle.
func (s *catalogState) notifyChange(ch CatalogChange) {
	select {
	case s.changes <- ch:
	default:
	}
}

func (s *catalogState) activeMarkets() []model.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Market, 0, len(s.active))
	for id := range s.active {
		out = append(out, s.markets[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConditionID < out[j].ConditionID })
	return out
}

func (s *catalogState) market(conditionID string) (model.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[conditionID]
	return m, ok
}

// tokenIDs returns the active markets' token IDs in a stable order so
// chunk boundaries do not shuffle between calls.
func (s *catalogState) tokenIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, 2*len(s.active))
	for conditionID := range s.active {
		for _, tok := range s.tokens[conditionID] {
			ids = append(ids, tok.TokenID)
		}
	}
	sort.Strings(ids)
	return ids
}

// tradable reports whether a market should be streamed.
func tradable(m model.Market) bool {
	return m.Active && !m.Closed && m.AcceptingOrders
}
