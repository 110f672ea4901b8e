// Package discovery clusters still-unclassified transactions into candidate
// groups so the user can create one rule that resolves many transactions at
// once.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
)

// Engine scans a user's OPEN-leaf transactions and groups them by normalized
// description. It never mutates transactions.
type Engine struct {
	txs      service.TransactionStore
	taxonomy service.TaxonomyStore
}

// New creates a discovery engine.
func New(txs service.TransactionStore, taxonomy service.TaxonomyStore) *Engine {
	return &Engine{txs: txs, taxonomy: taxonomy}
}

// Discover groups the user's unclassified transactions by normalized
// description and ranks the groups. The scan is bounded to the most recent
// rows within service.DiscoveryScanLimit; the result is truncated to the
// filter limit (capped at service.MaxResultLimit).
func (e *Engine) Discover(ctx context.Context, userID string, filter service.DiscoveryFilter) ([]model.DiscoveryCandidate, error) {
	openLeafID, err := e.taxonomy.EnsureOpenLeaf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure OPEN leaf: %w", err)
	}

	txns, err := e.txs.ListByUser(ctx, userID, service.TransactionFilter{
		LeafID:       &openLeafID,
		StartDate:    filter.DateFrom,
		EndDate:      filter.DateTo,
		MinAbsAmount: filter.MinAbsAmount,
		MaxAbsAmount: filter.MaxAbsAmount,
		Limit:        service.DiscoveryScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified transactions: %w", err)
	}

	groups := make(map[string]*model.DiscoveryCandidate)
	for i := range txns {
		txn := &txns[i]
		key := txn.DescNorm
		if key == "" {
			key = common.Normalize(txn.DescRaw)
		}

		g, ok := groups[key]
		if !ok {
			g = &model.DiscoveryCandidate{
				Key:       key,
				FirstSeen: txn.Date,
				LastSeen:  txn.Date,
				Sample: model.SampleTransaction{
					ID:      txn.ID,
					Date:    txn.Date,
					Amount:  txn.Amount,
					DescRaw: txn.DescRaw,
				},
			}
			groups[key] = g
		}

		g.Count++
		g.TotalAbsAmount += txn.AbsAmount()
		if txn.Date.Before(g.FirstSeen) {
			g.FirstSeen = txn.Date
		}
		if txn.Date.After(g.LastSeen) {
			g.LastSeen = txn.Date
		}
	}

	candidates := make([]model.DiscoveryCandidate, 0, len(groups))
	for _, g := range groups {
		candidates = append(candidates, *g)
	}

	sortCandidates(candidates, filter.SortBy, filter.SortDir)

	limit := filter.Limit
	if limit <= 0 || limit > service.MaxResultLimit {
		limit = service.MaxResultLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// sortCandidates orders groups by the requested key. Ties fall back to the
// group key ascending so output is reproducible.
func sortCandidates(candidates []model.DiscoveryCandidate, sortBy, sortDir string) {
	asc := sortDir == service.SortAsc

	less := func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		var cmp int
		switch sortBy {
		case service.SortByTotalAbsAmount:
			cmp = compareFloat(a.TotalAbsAmount, b.TotalAbsAmount)
		case service.SortByLastSeen:
			cmp = compareTime(a.LastSeen, b.LastSeen)
		default: // count is the default ranking
			cmp = a.Count - b.Count
		}
		if cmp == 0 {
			return a.Key < b.Key
		}
		if asc {
			return cmp < 0
		}
		return cmp > 0
	}

	sort.SliceStable(candidates, less)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
