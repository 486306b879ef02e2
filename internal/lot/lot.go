// Package lot adjusts order quantities to the exchange's lot-size rules.
package lot

import (
	"fmt"
	"math"

	"github.com/you/triarb-bot/internal/types"
)

// epsilon absorbs float64 division noise when counting steps, so a value
// that is already an exact step multiple is not floored one step down.
const epsilon = 1e-9

// Normalize clamps desired into [MinQty, MaxQty] and rounds it down to the
// nearest StepSize multiple. A malformed rule returns ErrInvalidRule. If
// step rounding drops the clamped quantity below MinQty the amount is not
// tradable and ErrUntradeable is returned rather than an order-sized zero.
func Normalize(rule types.LotSizeRule, desired float64) (float64, error) {
	if err := rule.Validate(); err != nil {
		return 0, fmt.Errorf("step=%v min=%v max=%v: %w", rule.StepSize, rule.MinQty, rule.MaxQty, err)
	}

	adjusted := math.Max(rule.MinQty, math.Min(rule.MaxQty, desired))
	steps := math.Floor(adjusted/rule.StepSize + epsilon)
	adjusted = steps * rule.StepSize

	if adjusted < rule.MinQty-epsilon {
		return 0, fmt.Errorf("%.10f below min %.10f after step rounding: %w",
			adjusted, rule.MinQty, types.ErrUntradeable)
	}
	return adjusted, nil
}
