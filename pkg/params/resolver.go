// Package params implements the Parameter Resolver (spec §4.2): a pure
// fold of independent, composable rules over a base AdaptiveParams and the
// day's DayMetrics. Each rule is implemented as its own
// func(types.AdaptiveParams, types.DayMetrics) types.AdaptiveParams so new
// day-types can be added in isolation and tested independently, per the
// design notes ("parameter resolution as a pure chain").
package params

import (
	"context"
	"log/slog"
	"time"

	"github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/solar"
	"github.com/solardispatch/core/pkg/types"
)

// rule is one composable adjustment in the fixed-order chain of spec §4.2's
// table.
type rule func(types.AdaptiveParams, types.DayMetrics) types.AdaptiveParams

// chain is the fixed order the table in spec §4.2 lists its rows in.
var chain = []rule{
	ruleVolatileDay,
	ruleExpensiveDay,
	ruleHighSolar,
	ruleLowSolar,
	ruleTomorrowExpensive,
	ruleTomorrowCheap,
}

// Location carries the optional site coordinates and horizon date Resolve
// needs to compute a real sunrise/sunset baseline instead of
// base.DaylightStartHour/EndHour's configured guess. A zero Location (both
// coordinates 0) disables the astronomical baseline; either coordinate
// being non-zero enables it, as for ControlConfig's Latitude/Longitude.
type Location struct {
	Latitude  float64
	Longitude float64
	Date      time.Time
}

func (l Location) known() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Resolve maps base and metrics to the effective planning parameters. When
// base.AdaptiveParametersEnabled is false, it returns base unchanged — the
// master toggle of spec §4.2 that reproduces the non-adaptive base planner.
//
// When loc carries known coordinates, the real sunrise/sunset for loc.Date
// (pkg/solar.WindowFor, backed by github.com/sixdouglas/suncalc) replaces
// base.DaylightStartHour/EndHour as the baseline *before* the chain runs,
// so ruleHighSolar/ruleLowSolar widen or narrow the astronomical window
// rather than a hardcoded guess.
func Resolve(ctx context.Context, base types.AdaptiveParams, m types.DayMetrics, loc Location) types.AdaptiveParams {
	if !base.AdaptiveParametersEnabled {
		log.Ctx(ctx).DebugContext(ctx, "adaptive parameters disabled, using base config unchanged")
		return base
	}

	p := base
	if loc.known() {
		w := solar.WindowFor(loc.Date, loc.Latitude, loc.Longitude)
		p.DaylightStartHour = w.StartHour
		p.DaylightEndHour = w.EndHour
		log.Ctx(ctx).DebugContext(ctx, "astronomical daylight window applied",
			slog.Float64("latitude", loc.Latitude),
			slog.Float64("longitude", loc.Longitude),
			slog.Int("daylightStartHour", w.StartHour),
			slog.Int("daylightEndHour", w.EndHour),
		)
	}

	for _, r := range chain {
		p = r(p, m)
	}

	log.Ctx(ctx).DebugContext(ctx, "effective params resolved",
		slog.Float64("minSavingsThreshold", p.MinSavingsThreshold),
		slog.Int("bootstrapBlockCount", p.BootstrapBlockCount),
		slog.Float64("minExportSpread", p.MinExportSpread),
		slog.Int("daylightStartHour", p.DaylightStartHour),
		slog.Int("daylightEndHour", p.DaylightEndHour),
		slog.Float64("solarConfidenceFactor", p.SolarConfidenceFactor),
		slog.Int("maxDischargeBlocksPerDay", p.MaxDischargeBlocksPerDay),
		slog.Float64("chargeReductionFactor", p.ChargeReductionFactor),
	)

	return p
}

// capMin returns the tighter of existing and cap, treating 0 as "no cap"
// for existing (MaxDischargeBlocksPerDay's unlimited sentinel) so a rule
// that introduces the first cap of the day doesn't get clamped to zero.
func capMin(existing, cap int) int {
	if cap <= 0 {
		return existing
	}
	if existing <= 0 {
		return cap
	}
	if cap < existing {
		return cap
	}
	return existing
}

// ruleVolatileDay: "price_cv > volatile_cv_threshold" row of spec §4.2.
func ruleVolatileDay(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.PriceCV <= p.VolatileCVThreshold {
		return p
	}
	if p.VolatileMinSavings < p.MinSavingsThreshold {
		p.MinSavingsThreshold = p.VolatileMinSavings
	}
	p.BootstrapBlockCount = p.VolatileBootstrapCount
	if p.VolatileMinExportSpread < p.MinExportSpread {
		p.MinExportSpread = p.VolatileMinExportSpread
	}
	return p
}

// ruleExpensiveDay: "price_level_vs_charge_cost > expensive_level_threshold".
func ruleExpensiveDay(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.PriceLevelVsChargeCost <= p.ExpensiveLevelThreshold {
		return p
	}
	if p.ExpensiveMinSavings > p.MinSavingsThreshold {
		p.MinSavingsThreshold = p.ExpensiveMinSavings
	}
	return p
}

// ruleHighSolar: "solar_ratio > high_solar_threshold" — widens the
// daylight window, raises solar confidence, and tightens the discharge cap.
func ruleHighSolar(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.SolarRatio <= p.HighSolarThreshold {
		return p
	}
	if p.HighSolarDaylightStartHour != 0 || p.HighSolarDaylightEndHour != 0 {
		p.DaylightStartHour = p.HighSolarDaylightStartHour
		p.DaylightEndHour = p.HighSolarDaylightEndHour
	}
	p.SolarConfidenceFactor = clamp01(p.SolarConfidenceFactor * 1.1)
	p.MaxDischargeBlocksPerDay = capMin(p.MaxDischargeBlocksPerDay, p.HighSolarDischargeCap)
	return p
}

// ruleLowSolar: "solar_ratio < low_solar_threshold" — narrows the daylight
// window and lowers solar confidence.
func ruleLowSolar(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.SolarRatio >= p.LowSolarThreshold {
		return p
	}
	if p.LowSolarDaylightStartHour != 0 || p.LowSolarDaylightEndHour != 0 {
		p.DaylightStartHour = p.LowSolarDaylightStartHour
		p.DaylightEndHour = p.LowSolarDaylightEndHour
	}
	p.SolarConfidenceFactor = clamp01(p.SolarConfidenceFactor * 0.9)
	return p
}

// ruleTomorrowExpensive: "tomorrow_price_ratio > tomorrow_expensive_threshold"
// caps discharge blocks to preserve the battery for a pricier tomorrow.
func ruleTomorrowExpensive(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.TomorrowPriceRatio == nil || *m.TomorrowPriceRatio <= p.TomorrowExpensiveThreshold {
		return p
	}
	p.MaxDischargeBlocksPerDay = capMin(p.MaxDischargeBlocksPerDay, p.TomorrowExpensiveDischargeCap)
	return p
}

// ruleTomorrowCheap: "tomorrow_price_ratio < tomorrow_cheap_threshold"
// reduces grid charging today since tomorrow will be cheaper to charge on.
func ruleTomorrowCheap(p types.AdaptiveParams, m types.DayMetrics) types.AdaptiveParams {
	if m.TomorrowPriceRatio == nil || *m.TomorrowPriceRatio >= p.TomorrowCheapThreshold {
		return p
	}
	p.ChargeReductionFactor = p.TomorrowCheapChargeReduction
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
