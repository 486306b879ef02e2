package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/pricecache"
	"github.com/you/triarb-bot/internal/risk"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type fakeExec struct {
	executed []types.Opportunity
	results  []types.TradeResult
}

func (f *fakeExec) Execute(ctx context.Context, opp types.Opportunity, initialAmount, feeRate, slippageTolerance float64) types.TradeResult {
	f.executed = append(f.executed, opp)
	res := types.TradeResult{
		Cycle:         opp.Cycle,
		Status:        types.TradeCompleted,
		InitialAmount: initialAmount,
		FinalAmount:   initialAmount * (1 + opp.ProfitPct/100),
	}
	f.results = append(f.results, res)
	return res
}

type emptyFetcher struct{}

func (emptyFetcher) TickerPrices(ctx context.Context) (types.PriceSnapshot, error) {
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Universe.QuoteAssets = []string{"USDT", "USDC", "TUSD", "DAI"}
	cfg.Binance.TakerFeeRate = 0.001
	cfg.Trade.InitialAmount = 100.0
	cfg.Trade.SlippageTolerance = 0.01
	cfg.Trade.TopK = 5
	cfg.Risk.MinProfitPct = 0.5
	cfg.Timings.LoopIntervalMs = 10
	return cfg
}

// liveCache returns a streaming-mode cache preloaded with the given prices.
func liveCache(prices types.PriceSnapshot) *pricecache.Cache {
	c := pricecache.New(emptyFetcher{}, pricecache.Options{Live: true, Retries: 1}, zap.NewNop())
	for sym, p := range prices {
		c.Apply(sym, p)
	}
	return c
}

// One profitable triangle at roughly +0.68% net of fees.
func trianglePrices() types.PriceSnapshot {
	return types.PriceSnapshot{
		"DAIUSDT":  0.9995,
		"USDTUSDC": 1.0002,
		"USDCDAI":  0.99,
	}
}

func TestIterate_ExecutesProfitableOpportunity(t *testing.T) {
	cfg := testConfig()
	exec := &fakeExec{}
	b := New(cfg, Deps{
		Cache: liveCache(trianglePrices()),
		Exec:  exec,
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	b.iterate(context.Background())

	require.Len(t, exec.executed, 1)
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", exec.executed[0].Cycle.Path())
}

func TestIterate_RiskGateBlocksThinMargins(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.MinProfitPct = 5.0
	exec := &fakeExec{}
	b := New(cfg, Deps{
		Cache: liveCache(trianglePrices()),
		Exec:  exec,
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	b.iterate(context.Background())

	assert.Empty(t, exec.executed)
}

func TestIterate_DryRunSkipsExecution(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	b := New(cfg, Deps{
		Cache: liveCache(trianglePrices()),
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	// Exec is nil in dry-run; the iteration must not panic.
	b.iterate(context.Background())
}

func TestIterate_TopKBoundsExecutions(t *testing.T) {
	cfg := testConfig()
	cfg.Trade.TopK = 1
	exec := &fakeExec{}

	prices := trianglePrices()
	// Second, slightly weaker triangle through TUSD.
	prices["USDTTUSD"] = 1.0002
	prices["TUSDDAI"] = 0.992

	b := New(cfg, Deps{
		Cache: liveCache(prices),
		Exec:  exec,
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	b.iterate(context.Background())

	require.Len(t, exec.executed, 1)
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", exec.executed[0].Cycle.Path())
}

func TestIterate_ExecutesTopKInProfitOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.MinProfitPct = 0.1
	exec := &fakeExec{}

	prices := trianglePrices()
	prices["USDTTUSD"] = 1.0002
	prices["TUSDDAI"] = 0.992

	b := New(cfg, Deps{
		Cache: liveCache(prices),
		Exec:  exec,
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	b.iterate(context.Background())

	require.Len(t, exec.executed, 2)
	assert.Equal(t, "DAIUSDT -> USDTUSDC -> USDCDAI", exec.executed[0].Cycle.Path())
	assert.Equal(t, "DAIUSDT -> USDTTUSD -> TUSDDAI", exec.executed[1].Cycle.Path())
}

func TestIterate_UniverseFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.MinProfitPct = 0.1
	exec := &fakeExec{}

	prices := trianglePrices()
	prices["USDTTUSD"] = 1.0002
	prices["TUSDDAI"] = 0.992

	// Only the TUSD triangle's symbols are in play.
	b := New(cfg, Deps{
		Cache:    liveCache(prices),
		Exec:     exec,
		Risk:     risk.NewEngine(cfg),
		Universe: []string{"DAIUSDT", "USDTTUSD", "TUSDDAI"},
	}, zap.NewNop())

	b.iterate(context.Background())

	require.Len(t, exec.executed, 1)
	assert.Equal(t, "DAIUSDT -> USDTTUSD -> TUSDDAI", exec.executed[0].Cycle.Path())
}

func TestIterate_EmptySnapshotDoesNothing(t *testing.T) {
	cfg := testConfig()
	exec := &fakeExec{}
	b := New(cfg, Deps{
		Cache: liveCache(nil),
		Exec:  exec,
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	b.iterate(context.Background())
	assert.Empty(t, exec.executed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	b := New(cfg, Deps{
		Cache: liveCache(nil),
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	var iterations int
	b.sleep = func(ctx context.Context, d time.Duration) error {
		iterations++
		if iterations >= 3 {
			return context.Canceled
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, 3, iterations)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_StopsBeforeFirstIterationWhenCancelled(t *testing.T) {
	cfg := testConfig()
	b := New(cfg, Deps{
		Cache: liveCache(nil),
		Risk:  risk.NewEngine(cfg),
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, b.Run(ctx))
}
