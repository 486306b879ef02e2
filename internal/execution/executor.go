// Package execution runs the three legs of a scored cycle against the
// exchange, strictly in sequence: each leg's quantity depends on the prior
// leg's fill. There is no rollback of filled legs: exchanges offer no
// atomic multi-leg trade, so partial completion is an accepted risk.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/you/triarb-bot/internal/lot"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type cexIface interface {
	LotSizeRule(ctx context.Context, symbol string) (types.LotSizeRule, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	SubmitMarketOrder(ctx context.Context, symbol string, qty float64) (types.FillConfirmation, error)
}

type Executor struct {
	cex cexIface
	log *zap.Logger
}

func NewExecutor(cex cexIface, log *zap.Logger) *Executor {
	return &Executor{cex: cex, log: log}
}

// Execute runs the cycle's legs in order. Before each leg the current
// quoted price is re-fetched: if it deviates from the scored price by more
// than slippageTolerance the remaining sequence is aborted. The amount
// carried into the next leg is filledQty * currentPrice, the live price
// rather than the scoring rate, so stale-price error does not compound across
// legs. A leg is never retried; the next loop iteration may rediscover the
// opportunity on its own.
func (e *Executor) Execute(ctx context.Context, opp types.Opportunity, initialAmount, feeRate, slippageTolerance float64) types.TradeResult {
	res := types.TradeResult{
		Cycle:         opp.Cycle,
		Legs:          make([]types.ExecutionLeg, 0, 3),
		Status:        types.TradeCompleted,
		InitialAmount: initialAmount,
		Ts:            time.Now(),
	}

	e.log.Info("executing cycle",
		zap.String("path", opp.Cycle.Path()),
		zap.Float64("scored_profit_pct", opp.ProfitPct),
		zap.Float64("initial_amount", initialAmount),
		zap.Float64("fee_rate", feeRate),
	)

	amount := initialAmount
	syms := [3]types.Symbol{opp.Cycle.P1, opp.Cycle.P2, opp.Cycle.P3}
	for i, sym := range syms {
		leg := types.ExecutionLeg{
			Symbol:      sym,
			ScoredRate:  opp.Rates[i],
			ScoredPrice: opp.Prices[i],
		}

		rule, err := e.cex.LotSizeRule(ctx, sym.Pair)
		if err != nil {
			return e.terminate(res, leg, i, types.TradeFailed, fmt.Sprintf("lot size rule: %v", err))
		}

		current, err := e.cex.CurrentPrice(ctx, sym.Pair)
		if err != nil {
			return e.terminate(res, leg, i, types.TradeFailed, fmt.Sprintf("current price: %v", err))
		}
		leg.CurrentPrice = current

		deviation := math.Abs(current-leg.ScoredPrice) / leg.ScoredPrice
		if deviation > slippageTolerance {
			return e.terminate(res, leg, i, types.TradeAborted,
				fmt.Sprintf("slippage %.4f exceeds tolerance %.4f", deviation, slippageTolerance))
		}

		qty, err := lot.Normalize(rule, amount/leg.ScoredRate)
		if err != nil {
			if errors.Is(err, types.ErrUntradeable) {
				return e.terminate(res, leg, i, types.TradeAborted, err.Error())
			}
			return e.terminate(res, leg, i, types.TradeFailed, err.Error())
		}
		leg.Quantity = qty

		fill, err := e.cex.SubmitMarketOrder(ctx, sym.Pair, qty)
		if err != nil {
			return e.terminate(res, leg, i, types.TradeFailed, fmt.Sprintf("order: %v", err))
		}

		leg.FilledQty = fill.FilledQty
		leg.OutAmount = fill.FilledQty * current
		leg.Status = types.LegFilled
		res.Legs = append(res.Legs, leg)

		e.log.Info("leg filled",
			zap.Int("leg", i+1),
			zap.String("symbol", sym.Pair),
			zap.Float64("qty", qty),
			zap.Float64("filled", fill.FilledQty),
			zap.Float64("price", current),
			zap.Float64("out_amount", leg.OutAmount),
		)
		amount = leg.OutAmount
	}

	res.FinalAmount = amount
	return res
}

// terminate records the leg that stopped the sequence. No further legs are
// attempted and filled legs keep their fills.
func (e *Executor) terminate(res types.TradeResult, leg types.ExecutionLeg, i int, status types.TradeStatus, reason string) types.TradeResult {
	if status == types.TradeAborted {
		leg.Status = types.LegAborted
	} else {
		leg.Status = types.LegFailed
	}
	leg.Reason = reason
	res.Legs = append(res.Legs, leg)
	res.Status = status
	res.FailedLeg = i + 1

	e.log.Warn("trade sequence stopped",
		zap.String("path", res.Cycle.Path()),
		zap.String("status", string(status)),
		zap.Int("leg", i+1),
		zap.String("symbol", leg.Symbol.Pair),
		zap.String("reason", reason),
	)
	return res
}
