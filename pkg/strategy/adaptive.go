package strategy

import (
	"context"

	"github.com/solardispatch/core/pkg/evaluator"
	"github.com/solardispatch/core/pkg/metrics"
	"github.com/solardispatch/core/pkg/params"
	"github.com/solardispatch/core/pkg/planner"
	"github.com/solardispatch/core/pkg/types"
)

// AdaptiveAllocator is the primary economic strategy (spec §4.3 + §4.4):
// it resolves day-adaptive parameters, runs the eleven-phase allocator
// over the full horizon, and evaluates the current block against the
// resulting schedule.
type AdaptiveAllocator struct {
	BaseParams types.AdaptiveParams
	IsEnabled  bool
}

func (a *AdaptiveAllocator) Name() string { return "adaptive" }

func (a *AdaptiveAllocator) Enabled() bool { return a.IsEnabled }

func (a *AdaptiveAllocator) Evaluate(ctx context.Context, ec types.EvaluationContext) (types.BlockEvaluation, error) {
	dailyConsumption := dailyConsumptionEstimate(ec)
	m := metrics.Compute(ctx, ec.Horizon, ec.Solar.RemainingTodayKWH, ec.Solar.TomorrowTotalKWH, ec.BatteryAvgChargePrice, dailyConsumption)
	loc := params.Location{
		Latitude:  ec.Config.Latitude,
		Longitude: ec.Config.Longitude,
		Date:      ec.CurrentBlock.BlockStart,
	}
	resolved := params.Resolve(ctx, a.BaseParams, m, loc)

	in := planner.Input{
		Horizon:                  ec.Horizon,
		Params:                   resolved,
		BatteryPercent:           ec.BatteryPercent,
		BatteryCapacityKWH:       ec.Config.BatteryCapacityKWH,
		MaxChargeRateKW:          ec.Config.MaxChargeRateKW,
		MinSOC:                   ec.Config.MinSOC,
		SolarRemainingTodayKWH:   ec.Solar.RemainingTodayKWH,
		HourlyConsumptionProfile: ec.HourlyConsumptionProfile,
		FallbackConsumptionKWH:   ec.ConsumptionForecastKWH,
		BatteryAvgChargePrice:    ec.BatteryAvgChargePrice,
		TomorrowPriceRatio:       m.TomorrowPriceRatio,
	}
	schedule := planner.Allocate(ctx, in)

	evalCtx := ec
	evalCtx.TargetBatterySOC = resolved.TargetBatterySOC
	evalCtx.MinSOCAfterExport = resolved.MinSOCAfterExport

	return evaluator.Evaluate(ctx, a.Name(), evalCtx, schedule), nil
}

// dailyConsumptionEstimate sums the per-block consumption forecast (or
// the hourly profile, if present) into a whole-day kWh figure for the Day
// Metrics' solar_ratio/tomorrow_solar_ratio denominators.
func dailyConsumptionEstimate(ec types.EvaluationContext) float64 {
	if ec.HourlyConsumptionProfile != nil {
		var total float64
		for _, perHour := range ec.HourlyConsumptionProfile {
			total += perHour
		}
		return total
	}
	var total float64
	for _, c := range ec.ConsumptionForecastKWH {
		total += c
	}
	return total
}
