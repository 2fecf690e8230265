package strategy

import (
	"context"

	"github.com/solardispatch/core/pkg/evaluator"
	"github.com/solardispatch/core/pkg/types"
)

// FixedPriceArbitrage serves fixed-buy-price contracts with a spot-sell
// sensor (spec §4.5): it always charges at the flat buy price up to
// target SOC, and discharges to the grid only when the spot-sell price
// clears MinProfitThreshold over the buy price.
type FixedPriceArbitrage struct {
	TargetBatterySOC   float64
	MinSOCAfterExport  float64
	MinProfitThreshold float64
	IsEnabled          bool
}

func (f *FixedPriceArbitrage) Name() string { return "fixed_price_arbitrage" }

func (f *FixedPriceArbitrage) Enabled() bool { return f.IsEnabled }

func (f *FixedPriceArbitrage) Evaluate(ctx context.Context, ec types.EvaluationContext) (types.BlockEvaluation, error) {
	evalCtx := ec
	evalCtx.TargetBatterySOC = f.TargetBatterySOC
	evalCtx.MinSOCAfterExport = f.MinSOCAfterExport

	actions := make([]types.ActionTag, ec.Horizon.Len())

	if ec.Horizon.Len() == 0 {
		schedule := types.Schedule{Actions: actions}
		eval := evaluator.Evaluate(ctx, f.Name(), evalCtx, schedule)
		eval.DecisionUID = f.Name() + ":no_spot_data"
		return eval, nil
	}

	idx := ec.Horizon.IndexOf(ec.CurrentBlock.BlockStart)

	if ec.CurrentBlock.SpotSellPrice == nil {
		// Missing spot-sell data: self-use with a reason indicating no
		// spot data (spec §7 edge case).
		schedule := types.Schedule{Actions: actions}
		eval := evaluator.Evaluate(ctx, f.Name(), evalCtx, schedule)
		eval.Mode = types.SelfUse
		eval.Reason = "no spot-sell data available, falling back to self-use"
		eval.DecisionUID = f.Name() + ":no_spot_data"
		return eval, nil
	}

	spread := *ec.CurrentBlock.SpotSellPrice - ec.CurrentBlock.RawPrice
	var suffix string
	switch {
	case spread >= f.MinProfitThreshold:
		actions[idx] = types.ActionTag{Kind: types.ActionExport}
		suffix = "discharge"
	case ec.BatteryPercent < f.TargetBatterySOC:
		actions[idx] = types.Charge(types.ChargeOpportunistic)
		suffix = "charge"
	default:
		// No forced action: the spread doesn't clear the profit threshold
		// and the battery is already at/above target, so the block falls
		// through to ordinary self-use rather than being held idle.
		actions[idx] = types.ActionTag{Kind: types.ActionBatteryPowered}
		suffix = "no_opportunity"
	}

	schedule := types.Schedule{Actions: actions}
	eval := evaluator.Evaluate(ctx, f.Name(), evalCtx, schedule)
	// This strategy's own discharge/charge/no-opportunity distinctions are
	// driven by the buy/spot-sell spread, not by the Adaptive Allocator's
	// action-tag taxonomy evaluator.Evaluate builds its generic UID suffix
	// from (spec §8 S8, grounded on the original fixed_price_arbitrage
	// implementation's "fpa:discharge"/"fpa:no_opportunity"/"fpa:charge"
	// scheme) — so the suffix is overridden here rather than reused.
	eval.DecisionUID = f.Name() + ":" + suffix
	return eval, nil
}
