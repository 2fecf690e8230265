// Package types holds the value types shared by every dispatch package:
// price blocks, the planning horizon, control configuration, the
// per-evaluation context, action tags, and the block evaluation result.
// Everything here is immutable once constructed and safe to share across
// goroutines.
package types

import "time"

// PriceBlock is a single quarter-hour (in practice) slice of the planning
// horizon with its own price and forecasted flows. DurationMinutes is
// always read from the field rather than assumed to be 15 minutes.
type PriceBlock struct {
	BlockStart time.Time `json:"blockStart"`

	// DurationMinutes is always > 0; 15 in practice, but every computation
	// must use this field rather than hard-coding 0.25 hours.
	DurationMinutes float64 `json:"durationMinutes"`

	// RawPrice is the grid-import spot price for this block.
	RawPrice float64 `json:"rawPrice"`

	// EffectivePrice is RawPrice plus distribution/fees. This is the price
	// used for every economic decision in the core.
	EffectivePrice float64 `json:"effectivePrice"`

	// SpotSellPrice is the revenue per kWh exported during this block. Nil
	// when the contract is fixed-sell (no spot-sell sensor).
	SpotSellPrice *float64 `json:"spotSellPrice,omitempty"`
}

// DurationHours returns the block length in hours.
func (b PriceBlock) DurationHours() float64 {
	return b.DurationMinutes / 60.0
}

// Horizon is an ordered, contiguous sequence of price blocks covering the
// next 24-48 hours, sorted by BlockStart.
type Horizon struct {
	Blocks []PriceBlock `json:"blocks"`
}

// Len returns the number of blocks in the horizon.
func (h Horizon) Len() int {
	return len(h.Blocks)
}

// IndexOf returns the index of the block whose BlockStart equals ts. Per
// the core's error-handling contract (spec §7), a horizon that doesn't
// contain ts is not an error: the nearest block, index 0, is returned
// instead so the caller always gets a deterministic evaluation.
func (h Horizon) IndexOf(ts time.Time) int {
	for i, b := range h.Blocks {
		if b.BlockStart.Equal(ts) {
			return i
		}
	}
	return 0
}
