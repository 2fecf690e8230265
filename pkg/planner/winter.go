package planner

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/types"
)

// AllocateWinter implements the legacy Winter Adaptive planner (spec §4.5):
// horizon-aware tiered discharge based on price percentile within the
// horizon's still-GridPowered blocks, tomorrow-preservation,
// export-on-spike, and negative-price handling. The tiers are price
// percentiles only; the battery SOC does not enter the tiering. Grounded on the teacher's SimulateState, which
// rolls a 24-hour energy simulation forward hour by hour against a
// price/solar profile; this planner keeps that forward-rolling-tiers shape
// but trades the teacher's absolute kWh simulation for percentile-ranked
// price tiers, since this core's schedule is a per-block action tag, not a
// simulated energy trace.
func AllocateWinter(ctx context.Context, in Input) types.Schedule {
	n := in.Horizon.Len()
	actions := make([]types.ActionTag, n)
	for i := range actions {
		actions[i] = types.GridPowered
	}
	if n == 0 {
		return types.Schedule{Actions: actions}
	}

	s := &state{in: in, actions: actions}
	s.computeConsumptionAndSolar(ctx)
	phase0MorningPeakCoverage(ctx, s)
	phase1NegativePrices(s)

	prices := make([]float64, 0, n)
	for i, a := range s.actions {
		if a.Kind == types.ActionGridPowered {
			prices = append(prices, in.Horizon.Blocks[i].EffectivePrice)
		}
	}
	if len(prices) == 0 {
		sched := types.Schedule{Actions: s.actions}
		sched.Recount()
		return sched
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	median := percentileValue(sorted, 0.5)

	dischargePercentile := 0.85
	if in.TomorrowPriceRatio != nil && *in.TomorrowPriceRatio > 1.2 {
		// tomorrow is notably pricier: preserve more of the battery today
		// by only discharging the very top tier.
		dischargePercentile = 0.93
	}
	dischargeThreshold := percentileValue(sorted, dischargePercentile)
	spikeThreshold := median * 1.5

	for i, b := range in.Horizon.Blocks {
		if s.actions[i].Kind != types.ActionGridPowered {
			continue
		}
		if s.netConsumption[i] <= 0 {
			continue
		}
		if b.EffectivePrice >= spikeThreshold && in.Params.ExportEnabled {
			s.actions[i] = types.ActionTag{Kind: types.ActionExport}
			continue
		}
		if b.EffectivePrice >= dischargeThreshold {
			s.actions[i] = types.ActionTag{Kind: types.ActionBatteryPowered}
		}
	}

	if in.Params.ExportEnabled {
		for i, b := range in.Horizon.Blocks {
			if s.actions[i].Kind == types.ActionBatteryPowered && b.EffectivePrice-median >= in.Params.MinExportSpread {
				s.actions[i] = types.ActionTag{Kind: types.ActionExport}
			}
		}
	}

	phase10SolarExcess(s)
	enforceMaxDischargeBlocks(s, in.Params.MaxDischargeBlocksPerDay)

	sched := types.Schedule{Actions: s.actions}
	sched.Recount()
	sched.Stats.AveragePlannedChargePrice = in.BatteryAvgChargePrice

	log.Ctx(ctx).DebugContext(ctx, "winter adaptive plan allocated",
		slog.Int("blocks", n),
		slog.Float64("dischargeThreshold", dischargeThreshold),
		slog.Float64("spikeThreshold", spikeThreshold),
		slog.Int("batteryPowered", sched.Stats.BatteryPoweredCount),
		slog.Int("export", sched.Stats.ExportCount),
	)

	return sched
}

// phase0MorningPeakCoverage charges the cheapest overnight blocks (before
// Params.MorningPeakStartHour) just enough to survive the morning
// consumption peak at Params.TargetSOCAfterMorningPeak, rather than the
// full TargetBatterySOC — leaving headroom for solar to finish the charge.
// Grounded on the Winter Adaptive V9 "Solar-Aware Morning Peak Optimizer"'s
// calculate_morning_peak_charge_need/find_cheapest_overnight_blocks.
func phase0MorningPeakCoverage(ctx context.Context, s *state) {
	p := s.in.Params
	if !p.MorningPeakCoverageEnabled || s.in.BatteryCapacityKWH <= 0 {
		return
	}

	var overnightIdx []int
	morningPeakBlocks := 0
	for i, b := range s.in.Horizon.Blocks {
		h := b.BlockStart.Hour()
		switch {
		case h < p.MorningPeakStartHour:
			overnightIdx = append(overnightIdx, i)
		case h < p.MorningPeakEndHour:
			morningPeakBlocks++
		}
	}
	if len(overnightIdx) == 0 || morningPeakBlocks == 0 {
		return
	}

	peakConsumptionKWH := float64(morningPeakBlocks) * p.MorningPeakConsumptionPerBlockKWH
	consumptionSOCDelta := (peakConsumptionKWH / s.in.BatteryCapacityKWH) * 100
	socNeeded := p.TargetSOCAfterMorningPeak - s.in.BatteryPercent + consumptionSOCDelta
	if socNeeded <= 0 {
		return
	}

	efficiency := p.BatteryRoundTripEfficiency
	if efficiency <= 0 {
		efficiency = 1
	}
	blockHours := s.in.Horizon.Blocks[0].DurationHours()
	chargePerBlock := s.in.MaxChargeRateKW * blockHours * efficiency
	if chargePerBlock <= 0 {
		return
	}

	kwhNeeded := (socNeeded / 100) * s.in.BatteryCapacityKWH
	blocksNeeded := int(math.Ceil(kwhNeeded / chargePerBlock))
	if blocksNeeded < p.MinOvernightChargeBlocks {
		blocksNeeded = p.MinOvernightChargeBlocks
	}
	if blocksNeeded > len(overnightIdx) {
		blocksNeeded = len(overnightIdx)
	}

	sort.SliceStable(overnightIdx, func(a, b int) bool {
		return s.in.Horizon.Blocks[overnightIdx[a]].EffectivePrice < s.in.Horizon.Blocks[overnightIdx[b]].EffectivePrice
	})
	for _, idx := range overnightIdx[:blocksNeeded] {
		s.actions[idx] = types.Charge(types.ChargeMorningPeakCoverage)
	}

	log.Ctx(ctx).DebugContext(ctx, "morning peak coverage charged",
		slog.Int("morningPeakBlocks", morningPeakBlocks),
		slog.Int("overnightBlocksAvailable", len(overnightIdx)),
		slog.Int("chargeBlocksUsed", blocksNeeded),
	)
}

// enforceMaxDischargeBlocks demotes the least-expensive BatteryPowered/Export
// blocks back to GridPowered until the combined count is within cap.
func enforceMaxDischargeBlocks(s *state, cap int) {
	if cap <= 0 {
		return
	}
	var discharge []int
	for i, a := range s.actions {
		if a.Kind == types.ActionBatteryPowered || a.Kind == types.ActionExport {
			discharge = append(discharge, i)
		}
	}
	if len(discharge) <= cap {
		return
	}
	sort.SliceStable(discharge, func(a, b int) bool {
		return s.in.Horizon.Blocks[discharge[a]].EffectivePrice < s.in.Horizon.Blocks[discharge[b]].EffectivePrice
	})
	toRemove := len(discharge) - cap
	for _, idx := range discharge[:toRemove] {
		s.actions[idx] = types.GridPowered
	}
}

func percentileValue(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
