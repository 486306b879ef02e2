package types

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrSymbolNotFound marks an unknown symbol or a missing lot-size rule.
	// Non-retriable: the opportunity or leg involving it is abandoned.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrInvalidRule marks a malformed lot-size rule.
	ErrInvalidRule = errors.New("invalid lot size rule")

	// ErrUntradeable marks a quantity that cannot satisfy the lot-size
	// constraints even after clamping and step rounding.
	ErrUntradeable = errors.New("untradeable quantity")
)

// Symbol is one tradable pair. Pair is the exchange's concatenated
// BASEQUOTE token, e.g. "BTCUSDT".
type Symbol struct {
	Pair  string
	Base  string
	Quote string
}

// ParseSymbol splits a concatenated pair token into base and quote using
// the given quote-asset universe. Longer quote codes win, so "BTCUSDT"
// resolves against "USDT" before "SDT"-like collisions. Asset codes are
// 3-5 characters; anything else fails the parse.
func ParseSymbol(pair string, quotes []string) (Symbol, bool) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	qs := make([]string, len(quotes))
	for i, q := range quotes {
		qs[i] = strings.ToUpper(strings.TrimSpace(q))
	}
	sort.SliceStable(qs, func(i, j int) bool { return len(qs[i]) > len(qs[j]) })

	for _, q := range qs {
		if len(q) < 3 || len(q) > 5 {
			continue
		}
		if !strings.HasSuffix(pair, q) {
			continue
		}
		base := strings.TrimSuffix(pair, q)
		if len(base) < 3 || len(base) > 5 {
			continue
		}
		return Symbol{Pair: pair, Base: base, Quote: q}, true
	}
	return Symbol{}, false
}

// PriceSnapshot maps a pair token to its last known price. A snapshot is
// owned by the loop iteration that created it and is never mutated.
type PriceSnapshot map[string]float64

func (s PriceSnapshot) Clone() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Cycle is an ordered triple of symbols forming a closed three-leg path.
type Cycle struct {
	P1, P2, P3 Symbol
}

// Closes reports whether the triple satisfies the closure invariant:
// each pair's quote asset is the next pair's base asset, wrapping around.
func (c Cycle) Closes() bool {
	return c.P1.Quote == c.P2.Base &&
		c.P2.Quote == c.P3.Base &&
		c.P3.Quote == c.P1.Base
}

func (c Cycle) Path() string {
	return c.P1.Pair + " -> " + c.P2.Pair + " -> " + c.P3.Pair
}

// Opportunity is a scored cycle. Rates are the three conversion rates used
// for scoring (the third is the inverse of the third pair's price); Prices
// are the raw quoted prices, kept so the executor can compare like with
// like when checking slippage.
type Opportunity struct {
	Cycle     Cycle
	Rates     [3]float64
	Prices    [3]float64
	ProfitPct float64
	Ts        time.Time
}

// LotSizeRule is the exchange's quantity quantization for one symbol.
type LotSizeRule struct {
	StepSize float64
	MinQty   float64
	MaxQty   float64
}

func (r LotSizeRule) Validate() error {
	if r.StepSize <= 0 || r.MinQty <= 0 || r.MaxQty <= 0 {
		return ErrInvalidRule
	}
	if r.StepSize > r.MaxQty || r.MinQty > r.MaxQty {
		return ErrInvalidRule
	}
	return nil
}

// FillConfirmation is the exchange's acknowledgement of a market order.
type FillConfirmation struct {
	OrderID   string
	FilledQty float64
	AvgPrice  float64
}

type LegStatus string

const (
	LegFilled  LegStatus = "filled"
	LegAborted LegStatus = "aborted"
	LegFailed  LegStatus = "failed"
)

// ExecutionLeg records one attempted order within a trade sequence.
type ExecutionLeg struct {
	Symbol       Symbol
	ScoredRate   float64
	ScoredPrice  float64
	CurrentPrice float64
	Quantity     float64
	FilledQty    float64
	OutAmount    float64
	Status       LegStatus
	Reason       string
}

type TradeStatus string

const (
	TradeCompleted TradeStatus = "completed"
	TradeAborted   TradeStatus = "aborted"
	TradeFailed    TradeStatus = "failed"
)

// TradeResult is the terminal outcome of executing one opportunity.
// FailedLeg is 1-based and zero when the trade completed; filled legs are
// left as-is on abort or failure, there is no rollback.
type TradeResult struct {
	Cycle         Cycle
	Legs          []ExecutionLeg
	Status        TradeStatus
	FailedLeg     int
	InitialAmount float64
	FinalAmount   float64
	Ts            time.Time
}
