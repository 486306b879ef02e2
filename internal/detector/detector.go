// Package detector enumerates triangular cycles over a price snapshot and
// scores each by net-of-fee profit.
package detector

import (
	"math"
	"sort"
	"time"

	"github.com/you/triarb-bot/internal/types"
)

// ProfitPct is the scoring formula for one cycle: the first two legs use
// the quoted price as the conversion rate, the third leg the inverse.
// Fees compound once per leg.
func ProfitPct(p1, p2, p3, feeRate float64) float64 {
	return (p1 * p2 * (1 / p3) * math.Pow(1-feeRate, 3) - 1) * 100
}

// Find enumerates all ordered 3-permutations of the symbols present in
// snap, keeps those satisfying the closure invariant with positive
// net-of-fee profit, and returns them sorted by profit descending. The
// sort is stable and enumeration order is fixed (lexicographic over pair
// tokens), so equal profits tie-break by first discovery. Symbols that do
// not parse against the quote universe, and permutations with a missing or
// non-positive price, are skipped without failing the scan.
//
// The scan is O(n³) over distinct symbols; callers keep n tractable by
// pre-filtering the snapshot to their quote-currency universe.
func Find(snap types.PriceSnapshot, quotes []string, feeRate float64) []types.Opportunity {
	pairs := make([]string, 0, len(snap))
	for pair := range snap {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	syms := make([]types.Symbol, 0, len(pairs))
	for _, pair := range pairs {
		if sym, ok := types.ParseSymbol(pair, quotes); ok {
			syms = append(syms, sym)
		}
	}

	now := time.Now()
	var opps []types.Opportunity
	for i := range syms {
		for j := range syms {
			if j == i {
				continue
			}
			if syms[i].Quote != syms[j].Base {
				continue
			}
			for k := range syms {
				if k == i || k == j {
					continue
				}
				cycle := types.Cycle{P1: syms[i], P2: syms[j], P3: syms[k]}
				if !cycle.Closes() {
					continue
				}
				p1, ok1 := snap[cycle.P1.Pair]
				p2, ok2 := snap[cycle.P2.Pair]
				p3, ok3 := snap[cycle.P3.Pair]
				if !ok1 || !ok2 || !ok3 || p1 <= 0 || p2 <= 0 || p3 <= 0 {
					continue
				}
				profit := ProfitPct(p1, p2, p3, feeRate)
				if profit <= 0 {
					continue
				}
				opps = append(opps, types.Opportunity{
					Cycle:     cycle,
					Rates:     [3]float64{p1, p2, 1 / p3},
					Prices:    [3]float64{p1, p2, p3},
					ProfitPct: profit,
					Ts:        now,
				})
			}
		}
	}

	sort.SliceStable(opps, func(a, b int) bool { return opps[a].ProfitPct > opps[b].ProfitPct })
	return opps
}
