package detector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/you/triarb-bot/internal/types"
)

// Stablecoin universe for the cycle tests. Near-unity prices keep exactly
// one rotation of each triple profitable, so the expected result set is
// small and explicit.
var quotes = []string{"USDT", "USDC", "TUSD", "DAI"}

func TestProfitPct_Formula(t *testing.T) {
	p1, p2, p3, fee := 50000.0, 0.0000205, 1.02, 0.001
	want := (p1*p2*(1/p3)*math.Pow(1-fee, 3) - 1) * 100

	assert.InDelta(t, want, ProfitPct(p1, p2, p3, fee), 1e-9)
	assert.Greater(t, ProfitPct(p1, p2, p3, fee), 0.0)
}

func TestProfitPct_NegativeCycleScoresNegative(t *testing.T) {
	// 50000 * 0.02 / 1010 is just under par; compounded fees take the net
	// to roughly -1.29%.
	want := (50000*0.02*(1/1010.0)*math.Pow(0.999, 3) - 1) * 100

	got := ProfitPct(50000, 0.02, 1010, 0.001)
	assert.InDelta(t, want, got, 1e-9)
	assert.Less(t, got, 0.0)
}

func TestProfitPct_FeesEatMarginalEdge(t *testing.T) {
	// Gross multiplier 50000 * 0.00002 / 0.999 ≈ 1.001, under the 0.3%
	// three-leg fee cost, so the net is negative.
	got := ProfitPct(50000, 0.00002, 0.999, 0.001)
	assert.Less(t, got, 0.0)
}

func TestFind_DetectsClosedProfitableCycle(t *testing.T) {
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.99,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", opp.Cycle.Path())
	assert.True(t, opp.Cycle.Closes())
	assert.InDelta(t, ProfitPct(0.9995, 1.0002, 0.99, 0.001), opp.ProfitPct, 1e-9)
	assert.Greater(t, opp.ProfitPct, 0.0)

	assert.InDelta(t, 0.9995, opp.Rates[0], 1e-12)
	assert.InDelta(t, 1.0002, opp.Rates[1], 1e-12)
	assert.InDelta(t, 1/0.99, opp.Rates[2], 1e-12)
	assert.InDelta(t, 0.99, opp.Prices[2], 1e-12)
}

func TestFind_SkipsUnprofitable(t *testing.T) {
	// Every rotation multiplies out to exactly 1 before fees, so fees push
	// all of them below zero.
	snap := types.PriceSnapshot{
		"DAIUSDT":  1.0,
		"USDTUSDC": 1.0,
		"USDCDAI":  1.0,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Empty(t, opps)
}

func TestFind_SkipsOpenTriples(t *testing.T) {
	// All three parse, but no ordering of them closes a cycle.
	snap := types.PriceSnapshot{
		"DAIUSDT":  1.0,
		"TUSDUSDT": 1.0,
		"USDCUSDT": 1.0,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Empty(t, opps)
}

func TestFind_SkipsUnparseablePairs(t *testing.T) {
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.99,
		"DAIEUR":   0.93, // quote outside the universe
	}

	opps := Find(snap, quotes, 0.001)
	assert.Len(t, opps, 1)
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", opps[0].Cycle.Path())
}

func TestFind_SkipsDeadPrices(t *testing.T) {
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.0,
	}

	assert.Empty(t, Find(snap, quotes, 0.001))
}

func TestFind_MissingLegDropsOnlyThatCycle(t *testing.T) {
	// USDCDAI is absent, so the USDC triangle cannot form; the TUSD one
	// still comes back.
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDTTUSD": 1.0002,
		"TUSDDAI":  0.99,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Len(t, opps, 1)
	assert.Equal(t, "DAIUSDT -> USDTTUSD -> TUSDDAI", opps[0].Cycle.Path())
}

func TestFind_EmptySnapshot(t *testing.T) {
	assert.Empty(t, Find(types.PriceSnapshot{}, quotes, 0.001))
	assert.Empty(t, Find(nil, quotes, 0.001))
}

func TestFind_SortedByProfitDescending(t *testing.T) {
	// Two triangles sharing DAIUSDT; the USDC one has the cheaper closing
	// leg and scores higher even though it is discovered second.
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.99,
		"USDTTUSD": 1.0002,
		"TUSDDAI":  0.992,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Len(t, opps, 2)
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", opps[0].Cycle.Path())
	assert.Equal(t, "DAIUSDT -> USDTTUSD -> TUSDDAI", opps[1].Cycle.Path())
	assert.Greater(t, opps[0].ProfitPct, opps[1].ProfitPct)
}

func TestFind_EqualProfitsKeepDiscoveryOrder(t *testing.T) {
	// Identical prices on both triangles give equal profit; enumeration is
	// lexicographic over pair tokens and the stable sort preserves it, so
	// the TUSD cycle (USDTTUSD sorts before USDTUSDC) stays first.
	snap := types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.99,
		"USDTTUSD": 1.0002,
		"TUSDDAI":  0.99,
	}

	opps := Find(snap, quotes, 0.001)
	assert.Len(t, opps, 2)
	assert.Equal(t, opps[0].ProfitPct, opps[1].ProfitPct)
	assert.Equal(t, "DAIUSDT -> USDTTUSD -> TUSDDAI", opps[0].Cycle.Path())
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", opps[1].Cycle.Path())
}
