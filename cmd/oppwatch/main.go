// oppwatch tails the Redis opportunity feed and prints the current top
// paths, best first. Useful for watching a running bot from another box.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/redisfeed"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	top := flag.Int64("top", 10, "how many paths to show")
	every := flag.Duration("every", 2*time.Second, "refresh interval")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	if cfg.Redis.Addr == "" {
		fmt.Println("redis.addr is empty in config.yaml")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	cons := redisfeed.NewConsumer(cfg)
	tick := time.NewTicker(*every)
	defer tick.Stop()

	for {
		events, err := cons.TopOpportunities(ctx, *top)
		if err != nil {
			fmt.Println("feed error:", err)
		} else {
			fmt.Printf("---- %s ----\n", time.Now().Format("15:04:05"))
			if len(events) == 0 {
				fmt.Println("(no active opportunities)")
			}
			for i, ev := range events {
				fmt.Printf("%2d. %-36s %+.4f%%  rates=[%.6g %.6g %.6g]  %s\n",
					i+1, ev.Path, ev.ProfitPct,
					ev.Rates[0], ev.Rates[1], ev.Rates[2],
					ev.Ts.Format("15:04:05"))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
