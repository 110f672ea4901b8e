// Package recurring infers recurrence cadences (weekly, monthly, quarterly,
// yearly) from the date history of classified transaction groups.
package recurring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/model"
	"github.com/jmatosp/contaclara/internal/service"
)

// merchantKeyLen caps the normalized description used as a grouping key.
const merchantKeyLen = 50

// Cadence tolerance bands, checked in order; first match wins.
var cadenceBands = []struct {
	cadence   model.Cadence
	period    float64
	tolerance float64
}{
	{model.CadenceWeekly, 7, 2},
	{model.CadenceMonthly, 30, 6},
	{model.CadenceQuarterly, 91, 18},
	{model.CadenceYearly, 365, 45},
}

// confidenceDivisor maps a cadence to the stdev divisor K in
// confidence = clamp(1 - stdev/K, 0, 1). Tighter expected spacing gets a
// smaller K so the same jitter costs more confidence.
var confidenceDivisor = map[model.Cadence]float64{
	model.CadenceWeekly:    4,
	model.CadenceMonthly:   10,
	model.CadenceQuarterly: 25,
	model.CadenceYearly:    70,
	model.CadenceUnknown:   30,
}

// Engine scans classified transactions and emits recurring-payment
// suggestions. It never mutates transactions.
type Engine struct {
	txs      service.TransactionStore
	taxonomy service.TaxonomyStore
}

// New creates a recurring-pattern engine.
func New(txs service.TransactionStore, taxonomy service.TaxonomyStore) *Engine {
	return &Engine{txs: txs, taxonomy: taxonomy}
}

// group accumulates the transactions sharing one composite key.
type group struct {
	merchantKey string
	category1   string
	category2   string
	category3   string
	direction   model.TransactionDirection
	dates       []time.Time
	amount      float64
	leafID      int64
}

// Detect groups the user's classified transactions by leaf, direction,
// rounded absolute amount and merchant key, then infers a cadence per group.
// Grouping on the exact amount ties detection to amount stability: a
// subscription whose price changes breaks the group.
func (e *Engine) Detect(ctx context.Context, userID string, filter service.RecurringFilter) ([]model.RecurringSuggestion, error) {
	openLeafID, err := e.taxonomy.EnsureOpenLeaf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure OPEN leaf: %w", err)
	}

	txns, err := e.txs.ListByUser(ctx, userID, service.TransactionFilter{
		ExcludeLeafID: &openLeafID,
		StartDate:     filter.DateFrom,
		EndDate:       filter.DateTo,
		Limit:         service.RecurringScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list classified transactions: %w", err)
	}

	minOccurrences := clampMinOccurrences(filter.MinOccurrences)

	groups := make(map[string]*group)
	for i := range txns {
		txn := &txns[i]
		key, mk := groupKey(txn)
		g, ok := groups[key]
		if !ok {
			g = &group{
				merchantKey: mk,
				leafID:      txn.LeafID,
				direction:   txn.Direction(),
				amount:      roundAmount(txn.AbsAmount()),
				category1:   txn.Category1,
				category2:   txn.Category2,
				category3:   txn.Category3,
			}
			groups[key] = g
		}
		g.dates = append(g.dates, txn.Date)
	}

	suggestions := make([]model.RecurringSuggestion, 0, len(groups))
	for _, g := range groups {
		if len(g.dates) < minOccurrences {
			continue
		}
		sort.Slice(g.dates, func(i, j int) bool { return g.dates[i].Before(g.dates[j]) })

		cadence, dayOfMonth, months, confidence := inferCadence(g.dates)

		suggestions = append(suggestions, model.RecurringSuggestion{
			MerchantKey:        g.merchantKey,
			LeafID:             g.leafID,
			Category1:          g.category1,
			Category2:          g.category2,
			Category3:          g.category3,
			Direction:          g.direction,
			Amount:             g.amount,
			Occurrences:        len(g.dates),
			FirstSeen:          g.dates[0],
			LastSeen:           g.dates[len(g.dates)-1],
			Cadence:            cadence,
			ExpectedDayOfMonth: dayOfMonth,
			ExpectedMonths:     months,
			Confidence:         confidence,
		})
	}

	sortSuggestions(suggestions, filter.SortBy, filter.SortDir)

	limit := filter.Limit
	if limit <= 0 || limit > service.MaxResultLimit {
		limit = service.MaxResultLimit
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

func clampMinOccurrences(n int) int {
	if n < service.MinOccurrencesFloor {
		return service.MinOccurrencesFloor
	}
	if n > service.MinOccurrencesCeiling {
		return service.MinOccurrencesCeiling
	}
	return n
}

// groupKey builds the composite grouping key and the merchant key it embeds.
func groupKey(txn *model.Transaction) (key, merchantKey string) {
	mk := txn.DescNorm
	if mk == "" {
		mk = common.Normalize(txn.DescRaw)
	}
	mk = truncateRunes(mk, merchantKeyLen)
	return fmt.Sprintf("%d|%s|%.2f|%s", txn.LeafID, txn.Direction(), roundAmount(txn.AbsAmount()), mk), mk
}

// truncateRunes shortens s to at most n runes. Cutting on a byte index could
// split a multibyte character and leave an invalid-UTF-8 key.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// inferCadence classifies the spacing of a sorted date list. Fewer than 3
// dates cannot support a period estimate and yield unknown with confidence 0.
func inferCadence(dates []time.Time) (cadence model.Cadence, dayOfMonth int, months []time.Month, confidence float64) {
	if len(dates) < 3 {
		return model.CadenceUnknown, 0, nil, 0
	}

	deltas := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		deltas = append(deltas, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	avg := mean(deltas)
	sd := stdev(deltas, avg)

	cadence = model.CadenceUnknown
	for _, band := range cadenceBands {
		if math.Abs(avg-band.period) <= band.tolerance {
			cadence = band.cadence
			break
		}
	}

	switch cadence {
	case model.CadenceMonthly:
		dayOfMonth = dayOfMonthMode(dates)
	case model.CadenceQuarterly:
		dayOfMonth = dayOfMonthMode(dates)
		months = quarterMonths(dates)
	case model.CadenceYearly:
		dayOfMonth = dayOfMonthMode(dates)
		months = yearlyMonths(dates)
	}

	confidence = math.Max(0, math.Min(1, 1-sd/confidenceDivisor[cadence]))
	return cadence, dayOfMonth, months, confidence
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// dayOfMonthMode returns the most frequent day of month; the smallest day
// wins ties so results are reproducible.
func dayOfMonthMode(dates []time.Time) int {
	counts := make(map[int]int)
	for _, d := range dates {
		counts[d.Day()]++
	}
	best, bestCount := 0, 0
	for day, count := range counts {
		if count > bestCount || (count == bestCount && day < best) {
			best, bestCount = day, count
		}
	}
	return best
}

// monthMode returns the most frequent month and whether it strictly
// dominates all other observed months. The smallest month wins count ties.
func monthMode(dates []time.Time) (time.Month, bool) {
	counts := make(map[time.Month]int)
	for _, d := range dates {
		counts[d.Month()]++
	}
	best, bestCount, tied := time.Month(0), 0, false
	for m, count := range counts {
		switch {
		case count > bestCount:
			best, bestCount, tied = m, count, false
		case count == bestCount:
			tied = true
			if m < best {
				best = m
			}
		}
	}
	return best, !tied
}

// quarterMonths returns the months sharing the anchor month's residue mod 3
// (e.g. Jan/Apr/Jul/Oct), anchored at the most frequent observed month.
func quarterMonths(dates []time.Time) []time.Month {
	anchor, _ := monthMode(dates)
	residue := (int(anchor) - 1) % 3
	months := make([]time.Month, 0, 4)
	for m := 1; m <= 12; m++ {
		if (m-1)%3 == residue {
			months = append(months, time.Month(m))
		}
	}
	return months
}

// yearlyMonths returns the dominant month, or every observed month when no
// single month dominates.
func yearlyMonths(dates []time.Time) []time.Month {
	anchor, dominant := monthMode(dates)
	if dominant {
		return []time.Month{anchor}
	}
	seen := make(map[time.Month]bool)
	for _, d := range dates {
		seen[d.Month()] = true
	}
	months := make([]time.Month, 0, len(seen))
	for m := 1; m <= 12; m++ {
		if seen[time.Month(m)] {
			months = append(months, time.Month(m))
		}
	}
	return months
}

// sortSuggestions orders suggestions by the requested key with the merchant
// key ascending as a deterministic tie-break.
func sortSuggestions(suggestions []model.RecurringSuggestion, sortBy, sortDir string) {
	asc := sortDir == service.SortAsc

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		var cmp int
		switch sortBy {
		case service.SortByAbsAmount:
			switch {
			case a.Amount < b.Amount:
				cmp = -1
			case a.Amount > b.Amount:
				cmp = 1
			}
		default: // occurrences is the default ranking
			cmp = a.Occurrences - b.Occurrences
		}
		if cmp == 0 {
			return a.MerchantKey < b.MerchantKey
		}
		if asc {
			return cmp < 0
		}
		return cmp > 0
	})
}
