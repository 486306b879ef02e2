// Package bot runs the arbitrage loop: refresh prices, scan for cycles,
// gate by the risk thresholds, execute the best candidates one at a time,
// sleep, repeat until a stop signal.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/redisfeed"
	"github.com/you/triarb-bot/internal/dash"
	"github.com/you/triarb-bot/internal/detector"
	"github.com/you/triarb-bot/internal/metrics"
	"github.com/you/triarb-bot/internal/notify"
	"github.com/you/triarb-bot/internal/pricecache"
	"github.com/you/triarb-bot/internal/risk"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

type executor interface {
	Execute(ctx context.Context, opp types.Opportunity, initialAmount, feeRate, slippageTolerance float64) types.TradeResult
}

type balances interface {
	AssetBalance(ctx context.Context, asset string) (free, locked float64, err error)
}

// Deps carries the collaborators. Exec is nil in dry-run mode; Feed, Dash
// and Balances are nil when their surface is disabled.
type Deps struct {
	Cache    *pricecache.Cache
	Exec     executor
	Risk     *risk.Engine
	Notifier *notify.Notifier
	Feed     *redisfeed.Publisher
	Dash     *dash.Store
	Balances balances
	Universe []string
}

type Bot struct {
	cfg      *config.Config
	log      *zap.Logger
	cache    *pricecache.Cache
	exec     executor
	risk     *risk.Engine
	notifier *notify.Notifier
	feed     *redisfeed.Publisher
	dash     *dash.Store
	balances balances
	universe map[string]struct{}

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, d Deps, log *zap.Logger) *Bot {
	var universe map[string]struct{}
	if len(d.Universe) > 0 {
		universe = make(map[string]struct{}, len(d.Universe))
		for _, s := range d.Universe {
			universe[strings.ToUpper(s)] = struct{}{}
		}
	}
	return &Bot{
		cfg:      cfg,
		log:      log,
		cache:    d.Cache,
		exec:     d.Exec,
		risk:     d.Risk,
		notifier: d.Notifier,
		feed:     d.Feed,
		dash:     d.Dash,
		balances: d.Balances,
		universe: universe,
		sleep:    sleepCtx,
	}
}

// Run iterates until the context is cancelled. The stop signal interrupts
// the inter-iteration sleep but never an in-flight trade sequence.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("arbitrage loop started",
		zap.Bool("dry_run", b.cfg.DryRun),
		zap.Duration("interval", b.cfg.LoopInterval()),
		zap.Int("top_k", b.cfg.Trade.TopK),
		zap.Float64("min_profit_pct", b.cfg.Risk.MinProfitPct),
	)
	for {
		if ctx.Err() != nil {
			b.log.Info("arbitrage loop stopped")
			return nil
		}
		b.iterate(ctx)
		if err := b.sleep(ctx, b.cfg.LoopInterval()); err != nil {
			b.log.Info("arbitrage loop stopped")
			return nil
		}
	}
}

// iterate runs one scan-and-execute pass. A failed price refresh skips the
// iteration, never the process.
func (b *Bot) iterate(ctx context.Context) {
	started := time.Now()

	snap, err := b.cache.Snapshot(ctx)
	if err != nil {
		b.log.Warn("price snapshot unavailable, skipping iteration", zap.Error(err))
		return
	}
	snap = b.filterUniverse(snap)

	opps := detector.Find(snap, b.cfg.Universe.QuoteAssets, b.cfg.Binance.TakerFeeRate)
	metrics.ScanDuration.Observe(time.Since(started).Seconds())
	metrics.OpportunitiesFound.Set(float64(len(opps)))

	if len(opps) == 0 {
		b.log.Info("no arbitrage opportunities", zap.Int("symbols", len(snap)))
		return
	}
	metrics.BestProfitPct.Set(opps[0].ProfitPct)

	top := opps
	if len(top) > b.cfg.Trade.TopK {
		top = top[:b.cfg.Trade.TopK]
	}

	for _, opp := range top {
		b.log.Info("opportunity",
			zap.String("path", opp.Cycle.Path()),
			zap.Float64("profit_pct", opp.ProfitPct),
			zap.Float64s("rates", opp.Rates[:]),
		)
		if b.dash != nil {
			b.dash.UpdateOpportunity(opp)
		}
		if b.feed != nil {
			if err := b.feed.PublishOpportunity(ctx, opp); err != nil {
				b.log.Warn("opportunity publish failed", zap.Error(err))
			}
		}
		if b.notifier != nil {
			_ = b.notifier.Notify(ctx, "opportunity", "Arbitrage opportunity",
				fmt.Sprintf("Path: %s\nProfit: %.4f%%", opp.Cycle.Path(), opp.ProfitPct))
		}

		if !b.risk.AllowTrade(opp.ProfitPct, b.cfg.Trade.InitialAmount) {
			continue
		}
		if b.exec == nil {
			b.log.Info("dry-run: execution skipped", zap.String("path", opp.Cycle.Path()))
			continue
		}

		// Opportunities compete for the same balance, so execution is
		// strictly sequential. A stop signal must not kill a trade
		// sequence mid-leg.
		res := b.exec.Execute(context.WithoutCancel(ctx), opp,
			b.cfg.Trade.InitialAmount, b.cfg.Binance.TakerFeeRate, b.cfg.Trade.SlippageTolerance)
		b.report(ctx, res)
	}
}

// report logs, counts and notifies the terminal outcome of one execution.
func (b *Bot) report(ctx context.Context, res types.TradeResult) {
	path := res.Cycle.Path()
	switch res.Status {
	case types.TradeCompleted:
		metrics.TradesCompleted.Inc()
		b.log.Info("trade completed",
			zap.String("path", path),
			zap.Float64("initial_amount", res.InitialAmount),
			zap.Float64("final_amount", res.FinalAmount),
		)
	case types.TradeAborted:
		metrics.TradesAborted.Inc()
		b.log.Warn("trade aborted",
			zap.String("path", path),
			zap.Int("leg", res.FailedLeg),
			zap.String("reason", legReason(res)),
		)
	case types.TradeFailed:
		metrics.TradesFailed.Inc()
		b.log.Error("trade failed",
			zap.String("path", path),
			zap.Int("leg", res.FailedLeg),
			zap.String("reason", legReason(res)),
		)
	}

	if b.dash != nil {
		b.dash.UpdateResult(res)
	}
	if b.notifier != nil {
		_ = b.notifier.Notify(ctx, "trade", "Trade "+string(res.Status), tradeMessage(res))
	}
	if b.balances != nil && res.Status == types.TradeCompleted {
		asset := res.Cycle.P1.Base
		if free, locked, err := b.balances.AssetBalance(ctx, asset); err == nil {
			b.log.Info("balance after trade",
				zap.String("asset", asset),
				zap.Float64("free", free),
				zap.Float64("locked", locked),
			)
		}
	}
}

func (b *Bot) filterUniverse(snap types.PriceSnapshot) types.PriceSnapshot {
	if b.universe == nil {
		return snap
	}
	out := make(types.PriceSnapshot, len(b.universe))
	for pair, price := range snap {
		if _, ok := b.universe[pair]; ok {
			out[pair] = price
		}
	}
	return out
}

func legReason(res types.TradeResult) string {
	if res.FailedLeg > 0 && res.FailedLeg <= len(res.Legs) {
		return res.Legs[res.FailedLeg-1].Reason
	}
	return ""
}

func tradeMessage(res types.TradeResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Path: %s\nStatus: %s", res.Cycle.Path(), res.Status)
	if res.FailedLeg > 0 {
		fmt.Fprintf(&sb, " at leg %d (%s)", res.FailedLeg, legReason(res))
	}
	for i, leg := range res.Legs {
		fmt.Fprintf(&sb, "\nLeg %d %s: qty=%.8f filled=%.8f price=%.8f",
			i+1, leg.Symbol.Pair, leg.Quantity, leg.FilledQty, leg.CurrentPrice)
	}
	if res.Status == types.TradeCompleted {
		fmt.Fprintf(&sb, "\nIn: %.8f Out: %.8f", res.InitialAmount, res.FinalAmount)
	}
	return sb.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
