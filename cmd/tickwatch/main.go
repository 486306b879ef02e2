// tickwatch dumps one minute of the raw mini-ticker stream to stdout so
// the websocket path can be eyeballed without starting the whole bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/triarb-bot/internal/connectors/cex/binance"
)

func main() {
	wsURL := flag.String("url", "wss://stream.binance.com:9443/ws/!miniTicker@arr", "stream url")
	dur := flag.Duration("for", 60*time.Second, "how long to watch")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	ws := binance.NewWS(*wsURL)
	stream, errs, err := ws.SubscribeMiniTickers(ctx)
	if err != nil {
		panic(err)
	}
	defer ws.Close()

	timeout := time.NewTimer(*dur)
	for {
		select {
		case e := <-errs:
			fmt.Println("miniTickers error:", e)
			return
		case t := <-stream:
			fmt.Printf("[tick] %s price=%.8f ts=%s\n", t.Symbol, t.Price, t.TS.Format(time.RFC3339))
		case <-timeout.C:
			fmt.Println("done.")
			return
		case <-ctx.Done():
			return
		}
	}
}
