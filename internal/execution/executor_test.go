package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type fakeCEX struct {
	rules  map[string]types.LotSizeRule
	prices map[string]float64

	ruleErr  map[string]error
	priceErr map[string]error
	orderErr map[string]error

	orders []placedOrder
}

type placedOrder struct {
	Symbol string
	Qty    float64
}

func (f *fakeCEX) LotSizeRule(ctx context.Context, symbol string) (types.LotSizeRule, error) {
	if err := f.ruleErr[symbol]; err != nil {
		return types.LotSizeRule{}, err
	}
	return f.rules[symbol], nil
}

func (f *fakeCEX) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := f.priceErr[symbol]; err != nil {
		return 0, err
	}
	return f.prices[symbol], nil
}

func (f *fakeCEX) SubmitMarketOrder(ctx context.Context, symbol string, qty float64) (types.FillConfirmation, error) {
	if err := f.orderErr[symbol]; err != nil {
		return types.FillConfirmation{}, err
	}
	f.orders = append(f.orders, placedOrder{Symbol: symbol, Qty: qty})
	return types.FillConfirmation{
		OrderID:   fmt.Sprintf("ord-%d", len(f.orders)),
		FilledQty: qty,
		AvgPrice:  f.prices[symbol],
	}, nil
}

// Profitable stablecoin triangle; scored and live prices agree unless a
// test moves one.
func testOpportunity() types.Opportunity {
	daiusdt, _ := types.ParseSymbol("DAIUSDT", []string{"USDT", "USDC", "DAI"})
	usdtusdc, _ := types.ParseSymbol("USDTUSDC", []string{"USDT", "USDC", "DAI"})
	usdcdai, _ := types.ParseSymbol("USDCDAI", []string{"USDT", "USDC", "DAI"})
	return types.Opportunity{
		Cycle:  types.Cycle{P1: daiusdt, P2: usdtusdc, P3: usdcdai},
		Rates:  [3]float64{0.9995, 1.0002, 1 / 0.99},
		Prices: [3]float64{0.9995, 1.0002, 0.99},
	}
}

func newFakeCEX() *fakeCEX {
	wide := types.LotSizeRule{StepSize: 0.00000001, MinQty: 0.00000001, MaxQty: 1e9}
	return &fakeCEX{
		rules: map[string]types.LotSizeRule{
			"DAIUSDT": wide, "USDTUSDC": wide, "USDCDAI": wide,
		},
		prices: map[string]float64{
			"DAIUSDT": 0.9995, "USDTUSDC": 1.0002, "USDCDAI": 0.99,
		},
		ruleErr:  map[string]error{},
		priceErr: map[string]error{},
		orderErr: map[string]error{},
	}
}

func TestExecute_CompletesAllThreeLegs(t *testing.T) {
	cex := newFakeCEX()
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeCompleted, res.Status)
	assert.Equal(t, 0, res.FailedLeg)
	assert.Len(t, res.Legs, 3)
	assert.Len(t, cex.orders, 3)
	assert.Equal(t, []string{"DAIUSDT", "USDTUSDC", "USDCDAI"},
		[]string{cex.orders[0].Symbol, cex.orders[1].Symbol, cex.orders[2].Symbol})
	for _, leg := range res.Legs {
		assert.Equal(t, types.LegFilled, leg.Status)
	}
	assert.Equal(t, 100.0, res.InitialAmount)
	assert.Greater(t, res.FinalAmount, 0.0)
}

func TestExecute_ForwardsFilledTimesCurrentPrice(t *testing.T) {
	cex := newFakeCEX()
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)
	assert.Equal(t, types.TradeCompleted, res.Status)

	// Leg 1: qty = 100/0.9995, out = qty * 0.9995 (fake fills in full).
	leg1 := res.Legs[0]
	assert.InDelta(t, 100.0/0.9995, leg1.Quantity, 1e-6)
	assert.InDelta(t, leg1.FilledQty*leg1.CurrentPrice, leg1.OutAmount, 1e-9)

	// Leg 2's quantity is sized from leg 1's live output, not the scoring
	// rate chain.
	leg2 := res.Legs[1]
	assert.InDelta(t, leg1.OutAmount/1.0002, leg2.Quantity, 1e-6)

	leg3 := res.Legs[2]
	assert.InDelta(t, leg2.OutAmount/(1/0.99), leg3.Quantity, 1e-6)
	assert.InDelta(t, leg3.OutAmount, res.FinalAmount, 1e-9)
}

func TestExecute_AbortsOnSlippage(t *testing.T) {
	cex := newFakeCEX()
	// Leg 2 drifted 2% from its scored price; tolerance is 1%.
	cex.prices["USDTUSDC"] = 1.0002 * 1.02
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeAborted, res.Status)
	assert.Equal(t, 2, res.FailedLeg)
	assert.Len(t, res.Legs, 2)
	assert.Equal(t, types.LegFilled, res.Legs[0].Status)
	assert.Equal(t, types.LegAborted, res.Legs[1].Status)
	assert.Contains(t, res.Legs[1].Reason, "slippage")

	// Leg 1 keeps its fill; legs 2 and 3 were never submitted.
	assert.Len(t, cex.orders, 1)
	assert.Equal(t, "DAIUSDT", cex.orders[0].Symbol)
}

func TestExecute_SlippageWithinToleranceProceeds(t *testing.T) {
	cex := newFakeCEX()
	cex.prices["USDTUSDC"] = 1.0002 * 1.005 // 0.5% drift under a 1% tolerance
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)
	assert.Equal(t, types.TradeCompleted, res.Status)
	assert.Len(t, cex.orders, 3)
}

func TestExecute_AbortsOnUntradeableQuantity(t *testing.T) {
	cex := newFakeCEX()
	// Clamping the small leg-3 amount up to MinQty and rounding down to the
	// step grid lands below MinQty again, which is untradeable.
	cex.rules["USDCDAI"] = types.LotSizeRule{StepSize: 700, MinQty: 1000, MaxQty: 1e9}
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeAborted, res.Status)
	assert.Equal(t, 3, res.FailedLeg)
	assert.Equal(t, types.LegAborted, res.Legs[2].Status)
	assert.Len(t, cex.orders, 2)
}

func TestExecute_FailsOnInvalidRule(t *testing.T) {
	cex := newFakeCEX()
	cex.rules["DAIUSDT"] = types.LotSizeRule{StepSize: 0, MinQty: 0, MaxQty: 0}
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeFailed, res.Status)
	assert.Equal(t, 1, res.FailedLeg)
	assert.Equal(t, types.LegFailed, res.Legs[0].Status)
	assert.Empty(t, cex.orders)
}

func TestExecute_FailsOnRuleFetchError(t *testing.T) {
	cex := newFakeCEX()
	cex.ruleErr["USDTUSDC"] = types.ErrSymbolNotFound
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeFailed, res.Status)
	assert.Equal(t, 2, res.FailedLeg)
	assert.Len(t, cex.orders, 1)
}

func TestExecute_FailsOnPriceFetchError(t *testing.T) {
	cex := newFakeCEX()
	cex.priceErr["DAIUSDT"] = errors.New("timeout")
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeFailed, res.Status)
	assert.Equal(t, 1, res.FailedLeg)
	assert.Contains(t, res.Legs[0].Reason, "current price")
	assert.Empty(t, cex.orders)
}

func TestExecute_FailsOnOrderError(t *testing.T) {
	cex := newFakeCEX()
	cex.orderErr["USDCDAI"] = errors.New("insufficient balance")
	e := NewExecutor(cex, zap.NewNop())

	res := e.Execute(context.Background(), testOpportunity(), 100.0, 0.001, 0.01)

	assert.Equal(t, types.TradeFailed, res.Status)
	assert.Equal(t, 3, res.FailedLeg)
	assert.Equal(t, types.LegFilled, res.Legs[0].Status)
	assert.Equal(t, types.LegFilled, res.Legs[1].Status)
	assert.Equal(t, types.LegFailed, res.Legs[2].Status)
	// The first two fills stand; there is no rollback.
	assert.Len(t, cex.orders, 2)
}
