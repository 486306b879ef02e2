// Package redisfeed publishes found opportunities and the discovered
// symbol universe to Redis so companion tools can watch the bot without
// touching the exchange.
package redisfeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/types"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
	active string
	metaNS string
}

func NewPublisher(cfg *config.Config) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{
		rdb:    rdb,
		stream: cfg.Redis.Stream,
		active: cfg.Redis.ActiveKey,
		metaNS: cfg.Redis.MetaNS,
	}
}

// PublishOpportunity appends the opportunity to the event stream, refreshes
// its entry in the active ZSET (scored by profit), and keeps the latest
// record per path in a hash.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp types.Opportunity) error {
	path := opp.Cycle.Path()
	fields := map[string]interface{}{
		"path":       path,
		"profit_pct": opp.ProfitPct,
		"rate1":      opp.Rates[0],
		"rate2":      opp.Rates[1],
		"rate3":      opp.Rates[2],
		"ts_ms":      opp.Ts.UnixMilli(),
	}

	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	if err := p.rdb.HSet(ctx, p.metaNS+path, fields).Err(); err != nil {
		return err
	}
	return p.rdb.ZAdd(ctx, p.active, redis.Z{
		Score: opp.ProfitPct, Member: path,
	}).Err()
}

// PublishSymbols records the discovered symbol universe in a ZSET keyed by
// discovery time.
func (p *Publisher) PublishSymbols(ctx context.Context, symbols []string, tsMs int64) error {
	members := make([]redis.Z, 0, len(symbols))
	for _, s := range symbols {
		members = append(members, redis.Z{Score: float64(tsMs), Member: s})
	}
	if len(members) == 0 {
		return nil
	}
	return p.rdb.ZAdd(ctx, "symbol:active", members...).Err()
}
