// rulecheck prints the LOT_SIZE filter for a list of symbols and shows how
// a sample quantity normalizes against each rule.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/cex/binance"
	"github.com/you/triarb-bot/internal/lot"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	symbolsStr := flag.String("symbols", "BTCUSDT,ETHUSDT,ETHBTC", "symbols to check, comma-separated")
	qty := flag.Float64("qty", 0.00015, "sample quantity to normalize")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	cex, err := binance.NewClient(cfg, zap.NewNop())
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	for _, s := range strings.Split(*symbolsStr, ",") {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		rule, err := cex.LotSizeRule(ctx, sym)
		if err != nil {
			fmt.Printf("%-12s error: %v\n", sym, err)
			continue
		}
		fmt.Printf("%-12s step=%.10g min=%.10g max=%.10g", sym, rule.StepSize, rule.MinQty, rule.MaxQty)
		norm, err := lot.Normalize(rule, *qty)
		if err != nil {
			fmt.Printf("  qty %.10g -> %v\n", *qty, err)
			continue
		}
		fmt.Printf("  qty %.10g -> %.10g\n", *qty, norm)
	}
}
