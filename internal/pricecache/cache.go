// Package pricecache holds the latest known price for every tradable
// symbol. It serves two feed shapes: a polling mode where reads older than
// the staleness window trigger a synchronous refresh, and a streaming mode
// where a websocket pump overwrites individual entries and reads return
// the live map as-is.
package pricecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/you/triarb-bot/internal/metrics"
	"github.com/you/triarb-bot/internal/types"
	"go.uber.org/zap"
)

// Fetcher performs a full ticker-price fetch from the exchange.
type Fetcher interface {
	TickerPrices(ctx context.Context) (types.PriceSnapshot, error)
}

type Options struct {
	// Window is how long a polled snapshot stays valid. Stale triangular
	// prices produce false-positive signals, so reads past the window
	// refresh before returning.
	Window  time.Duration
	Retries int
	Backoff time.Duration
	// Live marks the streaming mode: Snapshot never refreshes and the
	// burden of staleness shifts to feed liveness.
	Live bool
}

type Cache struct {
	mu        sync.RWMutex
	prices    map[string]float64
	updatedAt time.Time

	fetcher Fetcher
	opts    Options
	log     *zap.Logger

	// injectable for tests so retry behavior runs without real delays
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(fetcher Fetcher, opts Options, log *zap.Logger) *Cache {
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	return &Cache{
		prices:  make(map[string]float64, 1024),
		fetcher: fetcher,
		opts:    opts,
		log:     log,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Refresh performs a full price fetch with bounded retries and fixed
// backoff. On success the whole cache is replaced and a private copy is
// returned; on exhaustion the last error is returned and the previous
// contents are kept.
func (c *Cache) Refresh(ctx context.Context) (types.PriceSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		snap, err := c.fetcher.TickerPrices(ctx)
		if err == nil && len(snap) == 0 {
			err = fmt.Errorf("empty ticker response")
		}
		if err == nil {
			c.mu.Lock()
			c.prices = make(map[string]float64, len(snap))
			for k, v := range snap {
				c.prices[k] = v
			}
			c.updatedAt = c.now()
			c.mu.Unlock()
			return snap.Clone(), nil
		}

		lastErr = err
		metrics.PriceFetchErrors.Inc()
		c.log.Warn("price fetch failed",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.opts.Retries),
			zap.Error(err),
		)
		if attempt == c.opts.Retries {
			break
		}
		if err := c.sleep(ctx, c.opts.Backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("price fetch after %d attempts: %w", c.opts.Retries, lastErr)
}

// Snapshot returns the most recently known prices. In polling mode a
// snapshot older than the window refreshes synchronously first; in
// streaming mode the live map is copied with no freshness check.
func (c *Cache) Snapshot(ctx context.Context) (types.PriceSnapshot, error) {
	c.mu.RLock()
	age := c.now().Sub(c.updatedAt)
	fresh := !c.updatedAt.IsZero() && age <= c.opts.Window
	snap := c.copyLocked()
	c.mu.RUnlock()

	if c.opts.Live || fresh {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// Apply overwrites a single symbol entry from a streaming tick.
// Non-positive prices are dropped.
func (c *Cache) Apply(symbol string, price float64) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	c.prices[symbol] = price
	c.updatedAt = c.now()
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

func (c *Cache) copyLocked() types.PriceSnapshot {
	out := make(types.PriceSnapshot, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
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
