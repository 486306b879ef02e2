// Package marketdata pumps streaming ticker updates into the shared price
// cache. The cache is the only concurrently mutated structure in the
// system; writes go through Cache.Apply and the arbitrage loop reads whole
// snapshots concurrently.
package marketdata

import (
	"context"
	"time"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/cex/binance"
	"github.com/you/triarb-bot/internal/metrics"
	"github.com/you/triarb-bot/internal/pricecache"
	"go.uber.org/zap"
)

type subscriber interface {
	SubscribeMiniTickers(ctx context.Context) (<-chan binance.Ticker, <-chan error, error)
	Close() error
}

// Run subscribes to the ticker stream and applies every update to the
// cache, reconnecting with a fixed backoff until the context ends.
func Run(ctx context.Context, cfg *config.Config, ws subscriber, cache *pricecache.Cache, log *zap.Logger) {
	for ctx.Err() == nil {
		stream, errs, err := ws.SubscribeMiniTickers(ctx)
		if err != nil {
			log.Warn("ticker stream subscribe failed", zap.Error(err))
			if sleepCtx(ctx, cfg.ReconnectBackoff()) != nil {
				return
			}
			continue
		}
		log.Info("ticker stream connected")

	pump:
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if ok && err != nil {
					log.Warn("ticker stream error", zap.Error(err))
				}
				break pump
			case t, ok := <-stream:
				if !ok {
					break pump
				}
				cache.Apply(t.Symbol, t.Price)
				metrics.TicksApplied.Inc()
			}
		}

		_ = ws.Close()
		if sleepCtx(ctx, cfg.ReconnectBackoff()) != nil {
			return
		}
	}
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
