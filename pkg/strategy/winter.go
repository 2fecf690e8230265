package strategy

import (
	"context"

	"github.com/solardispatch/core/pkg/evaluator"
	"github.com/solardispatch/core/pkg/planner"
	"github.com/solardispatch/core/pkg/types"
)

// WinterAdaptive wraps the legacy tiered-discharge planner, retained for
// regression and comparison against the Adaptive Allocator (spec §4.5).
type WinterAdaptive struct {
	Params    types.AdaptiveParams
	IsEnabled bool

	// TomorrowPriceRatio, when non-nil, feeds the winter planner's
	// tomorrow-preservation rule. A collaborator running this strategy
	// standalone (without the Adaptive Allocator's Day Metrics) supplies
	// it directly; it is not computed here.
	TomorrowPriceRatio *float64
}

func (w *WinterAdaptive) Name() string { return "winter_adaptive" }

func (w *WinterAdaptive) Enabled() bool { return w.IsEnabled }

func (w *WinterAdaptive) Evaluate(ctx context.Context, ec types.EvaluationContext) (types.BlockEvaluation, error) {
	in := planner.Input{
		Horizon:                  ec.Horizon,
		Params:                   w.Params,
		BatteryPercent:           ec.BatteryPercent,
		BatteryCapacityKWH:       ec.Config.BatteryCapacityKWH,
		MaxChargeRateKW:          ec.Config.MaxChargeRateKW,
		MinSOC:                   ec.Config.MinSOC,
		SolarRemainingTodayKWH:   ec.Solar.RemainingTodayKWH,
		HourlyConsumptionProfile: ec.HourlyConsumptionProfile,
		FallbackConsumptionKWH:   ec.ConsumptionForecastKWH,
		BatteryAvgChargePrice:    ec.BatteryAvgChargePrice,
		TomorrowPriceRatio:       w.TomorrowPriceRatio,
	}
	schedule := planner.AllocateWinter(ctx, in)

	evalCtx := ec
	evalCtx.TargetBatterySOC = w.Params.TargetBatterySOC
	evalCtx.MinSOCAfterExport = w.Params.MinSOCAfterExport

	return evaluator.Evaluate(ctx, w.Name(), evalCtx, schedule), nil
}
