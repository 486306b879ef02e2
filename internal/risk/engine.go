// Package risk gates trade execution on the configured thresholds.
package risk

import "github.com/you/triarb-bot/internal/config"

type Engine struct{ cfg *config.Config }

func NewEngine(cfg *config.Config) *Engine { return &Engine{cfg: cfg} }

// AllowTrade reports whether an opportunity with the given scored profit
// and trade amount clears the execution threshold and the per-trade cap.
func (e *Engine) AllowTrade(profitPct, amount float64) bool {
	if profitPct < e.cfg.Risk.MinProfitPct {
		return false
	}
	if e.cfg.Risk.MaxTradeAmount > 0 && amount > e.cfg.Risk.MaxTradeAmount {
		return false
	}
	return true
}
