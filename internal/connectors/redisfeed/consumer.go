package redisfeed

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/triarb-bot/internal/config"
)

// Event is one opportunity record read back from the feed.
type Event struct {
	Path      string
	ProfitPct float64
	Rates     [3]float64
	Ts        time.Time
}

type Consumer struct {
	rdb    *redis.Client
	stream string
	active string
	metaNS string
}

func NewConsumer(cfg *config.Config) *Consumer {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Consumer{
		rdb:    rdb,
		stream: cfg.Redis.Stream,
		active: cfg.Redis.ActiveKey,
		metaNS: cfg.Redis.MetaNS,
	}
}

// TopOpportunities returns the n most profitable paths currently in the
// active ZSET, best first, with their latest records.
func (c *Consumer) TopOpportunities(ctx context.Context, n int64) ([]Event, error) {
	paths, err := c.rdb.ZRevRange(ctx, c.active, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(paths))
	for _, path := range paths {
		m, err := c.rdb.HGetAll(ctx, c.metaNS+path).Result()
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			continue
		}
		out = append(out, eventFromFields(m))
	}
	return out, nil
}

// StreamConsume reads opportunity events from the stream via a consumer
// group. Create the group once with:
//
//	XGROUP CREATE opp:stream <group> $ MKSTREAM
func (c *Consumer) StreamConsume(ctx context.Context, group, consumer string, out chan<- Event) error {
	for {
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{c.stream, ">"},
			Count:    200,
			Block:    time.Second,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				fields := make(map[string]string, len(msg.Values))
				for k, v := range msg.Values {
					if sv, ok := v.(string); ok {
						fields[k] = sv
					}
				}
				ev := eventFromFields(fields)
				if ev.Path != "" {
					select {
					case out <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				_ = c.rdb.XAck(ctx, c.stream, group, msg.ID).Err()
			}
		}
	}
}

func eventFromFields(m map[string]string) Event {
	ev := Event{Path: m["path"]}
	ev.ProfitPct, _ = strconv.ParseFloat(m["profit_pct"], 64)
	ev.Rates[0], _ = strconv.ParseFloat(m["rate1"], 64)
	ev.Rates[1], _ = strconv.ParseFloat(m["rate2"], 64)
	ev.Rates[2], _ = strconv.ParseFloat(m["rate3"], 64)
	if ms, err := strconv.ParseInt(m["ts_ms"], 10, 64); err == nil {
		ev.Ts = time.UnixMilli(ms)
	}
	return ev
}
