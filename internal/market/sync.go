package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// sync fetches the full catalog, diffs it against local state, and
// emits one CatalogChange per listed, updated, or delisted market.
func (r *registryImpl) sync(ctx context.Context) error {
	fetch := r.rest.GetAllMarkets
	if r.cfg.SamplingOnly {
		fetch = r.rest.GetAllSamplingMarkets
	}

	fetched, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	var listed, updated, delisted int

	s := r.state
	s.mu.Lock()

	seen := make(map[string]struct{}, len(fetched))
	for i := range fetched {
		am := &fetched[i]
		if am.ConditionID == "" {
			continue
		}
		seen[am.ConditionID] = struct{}{}

		m := am.ToModel()
		prev, known := s.markets[am.ConditionID]
		_, wasActive := s.active[am.ConditionID]

		if !tradable(m) {
			// Known-active markets that turned untradable get delisted;
			// the rest are not worth tracking at all.
			if wasActive {
				s.upsertLocked(m, am.TokenModels())
				mc := m
				s.notifyChange(CatalogChange{ConditionID: m.ConditionID, Type: ChangeDelisted, Market: &mc})
				delisted++
			}
			continue
		}

		s.upsertLocked(m, am.TokenModels())
		mc := m
		switch {
		case !wasActive:
			s.notifyChange(CatalogChange{ConditionID: m.ConditionID, Type: ChangeListed, Market: &mc})
			listed++
		case known && metadataChanged(prev, m):
			s.notifyChange(CatalogChange{ConditionID: m.ConditionID, Type: ChangeUpdated, Market: &mc})
			updated++
		}
	}

	// Active markets missing from the listing were delisted server-side.
	for id := range s.active {
		if _, ok := seen[id]; ok {
			continue
		}
		s.delistLocked(id)
		mc := s.markets[id]
		s.notifyChange(CatalogChange{ConditionID: id, Type: ChangeDelisted, Market: &mc})
		delisted++
	}

	s.lastSyncAt = time.Now()
	activeCount := len(s.active)
	s.mu.Unlock()

	if listed+updated+delisted > 0 {
		r.logger.Info("catalog reconciled",
			"fetched", len(fetched),
			"active", activeCount,
			"listed", listed,
			"updated", updated,
			"delisted", delisted)
	} else {
		r.logger.Debug("catalog unchanged", "fetched", len(fetched), "active", activeCount)
	}

	return nil
}

// metadataChanged reports whether fields consumers care about moved.
// UpdatedAt is refreshed on every sync and deliberately ignored.
func metadataChanged(prev, next model.Market) bool {
	return prev.AcceptingOrders != next.AcceptingOrders ||
		prev.Closed != next.Closed ||
		prev.Active != next.Active ||
		!prev.MinimumTickSize.Equal(next.MinimumTickSize) ||
		prev.EndTS != next.EndTS
}
