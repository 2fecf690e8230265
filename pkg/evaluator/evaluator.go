// Package evaluator implements the Block Evaluator (spec §4.4): it looks
// up the schedule entry for the current block and turns it into a
// concrete BlockEvaluation — inverter mode, predicted energy flows, cost,
// revenue, and a stable decision UID.
//
// Grounded on the teacher's finalizeAction closure inside
// controller.Decide: a single function collapsing a big decision table
// into one switch with an explicit no-change/fallback branch, generalized
// here from the teacher's 5 BatteryModes to this package's action-tag to
// inverter-mode mapping.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/types"
)

// Evaluate produces the BlockEvaluation for the current block of ctx,
// given the day's schedule. strategyName prefixes the decision UID (spec
// §4.4: "<strategy>:<mode-tag>[:<sub-reason>]"); it never errors: every
// degenerate input (empty horizon, current block not found, zero
// capacity/rate/efficiency) maps to a well-defined no-op per spec §7.
func Evaluate(ctx context.Context, strategyName string, ec types.EvaluationContext, schedule types.Schedule) types.BlockEvaluation {
	if ec.Horizon.Len() == 0 {
		return types.BlockEvaluation{
			BlockStart:      ec.CurrentBlock.BlockStart,
			DurationMinutes: ec.CurrentBlock.DurationMinutes,
			Mode:            ec.Config.DefaultMode.InverterMode(),
			Reason:          "No price data available",
		}
	}

	idx := ec.Horizon.IndexOf(ec.CurrentBlock.BlockStart)
	block := ec.Horizon.Blocks[idx]

	var action types.ActionTag
	if idx < len(schedule.Actions) {
		action = schedule.Actions[idx]
	}

	// Unscheduled negative price sanity net (spec §4.4): guards against a
	// parameter-resolution edge case leaving a negative-price block tagged
	// GridPowered.
	negativeFallback := false
	if block.EffectivePrice < 0 && !action.IsCharge() {
		action = types.ActionTag{Kind: types.ActionCharge}
		negativeFallback = true
	}

	eval := evaluateBlock(ec, idx, block, action, negativeFallback)
	eval.DecisionUID = strategyName + ":" + decisionUIDSuffix(action, negativeFallback)

	log.Ctx(ctx).DebugContext(ctx, "block evaluated",
		slog.String("decisionUID", eval.DecisionUID),
		slog.String("mode", eval.Mode.String()),
		slog.Float64("cost", eval.Cost),
		slog.Float64("revenue", eval.Revenue),
	)

	return eval
}

func evaluateBlock(ec types.EvaluationContext, idx int, block types.PriceBlock, action types.ActionTag, negativeFallback bool) types.BlockEvaluation {
	dt := block.DurationHours()
	consumption := ec.ConsumptionForBlock(idx)
	solar := ec.Solar.CurrentBlockKWH

	capacity := ec.Config.BatteryCapacityKWH
	rate := ec.Config.MaxChargeRateKW

	dischargeEnvelope := math.Max((ec.BatteryPercent-ec.Config.HardwareMinSOC)/100.0, 0) * capacity
	chargeHeadroom := math.Max((ec.Config.MaxSOC-ec.BatteryPercent)/100.0, 0) * capacity
	rateCapEnergy := rate * dt

	flows := types.EnergyFlows{HouseholdConsumptionKWH: consumption, SolarGenerationKWH: solar}

	var mode types.InverterMode
	var reason string

	switch action.Kind {
	case types.ActionCharge:
		target := ec.TargetBatterySOC
		belowTarget := ec.BatteryPercent < target && rate > 0 && capacity > 0
		if belowTarget {
			mode = types.ForceCharge
			chargeEnergy := math.Min(rateCapEnergy, chargeHeadroom)
			flows.BatteryChargeKWH = chargeEnergy
			excess := math.Max(solar-consumption, 0)
			flows.GridImportKWH = math.Max(chargeEnergy-excess, 0) + math.Max(consumption-solar, 0)
			flows.GridExportKWH = math.Max(excess-chargeEnergy, 0)
			reason = reasonFor(action, negativeFallback)
		} else {
			mode = types.BackUpMode
			netFlow(&flows, consumption-solar)
			reason = "battery already at or above target, holding"
		}

	case types.ActionBatteryPowered:
		net := consumption - solar
		mode = types.SelfUse
		if net > 0 {
			discharge := math.Min(net, dischargeEnvelope)
			flows.BatteryDischargeKWH = discharge
			flows.GridImportKWH = math.Max(net-discharge, 0)
			reason = "self-use covering expensive-hour demand from battery"
		} else {
			excess := -net
			chargeFromExcess := math.Min(excess, math.Min(rateCapEnergy, chargeHeadroom))
			flows.BatteryChargeKWH = chargeFromExcess
			flows.GridExportKWH = math.Max(excess-chargeFromExcess, 0)
			reason = "surplus solar absorbed by battery during planned discharge block"
		}

	case types.ActionExport:
		if ec.BatteryPercent > ec.MinSOCAfterExport {
			mode = types.ForceDischarge
			discharge := math.Min(rateCapEnergy, dischargeEnvelope)
			flows.BatteryDischargeKWH = discharge
			flows.GridImportKWH = math.Max(consumption-solar, 0)
			flows.GridExportKWH = discharge + math.Max(solar-consumption, 0)
			reason = "force-discharge to grid, price spread clears export threshold"
		} else {
			mode = types.SelfUse
			net := consumption - solar
			if net > 0 {
				discharge := math.Min(net, dischargeEnvelope)
				flows.BatteryDischargeKWH = discharge
				flows.GridImportKWH = math.Max(net-discharge, 0)
			} else {
				flows.GridExportKWH = -net
			}
			reason = "SOC at or below export floor, falling back to self-use"
		}

	case types.ActionSolarExcess:
		mode = types.SelfUse
		excess := math.Max(solar-consumption, 0)
		chargeFromExcess := math.Min(excess, math.Min(rateCapEnergy, chargeHeadroom))
		flows.BatteryChargeKWH = chargeFromExcess
		flows.GridExportKWH = math.Max(excess-chargeFromExcess, 0)
		flows.GridImportKWH = math.Max(consumption-solar, 0)
		reason = "surplus solar tops up the battery"

	case types.ActionHoldCharge:
		mode = types.BackUpMode
		netFlow(&flows, consumption-solar)
		reason = "holding charge for upcoming expensive hours"

	default: // GridPowered
		mode = types.BackUpMode
		netFlow(&flows, consumption-solar)
		reason = "grid serves load, no scheduled battery action"
	}

	exportPrice := ec.GridExportPrice
	if block.SpotSellPrice != nil {
		exportPrice = *block.SpotSellPrice
	}

	cost := flows.GridImportKWH * block.EffectivePrice
	revenue := flows.GridExportKWH * exportPrice
	if (action.Kind == types.ActionBatteryPowered || action.Kind == types.ActionExport) && flows.BatteryDischargeKWH > 0 {
		revenue += flows.BatteryDischargeKWH * block.EffectivePrice
	}

	assumptions := types.Assumptions{
		EffectivePrice:        block.EffectivePrice,
		GridExportPrice:       exportPrice,
		BatteryPercent:        ec.BatteryPercent,
		TargetBatterySOC:      ec.TargetBatterySOC,
		MinSOC:                ec.Config.MinSOC,
		HardwareMinSOC:        ec.Config.HardwareMinSOC,
		BlendedAvgChargePrice: ec.BatteryAvgChargePrice,
		NetConsumptionKWH:     consumption - solar,
		PlannedAction:         action,
	}

	return types.BlockEvaluation{
		BlockStart:      block.BlockStart,
		DurationMinutes: block.DurationMinutes,
		Mode:            mode,
		Reason:          reason,
		DecisionUID:     "", // filled in by Evaluate, which knows the strategy name
		EnergyFlows:     flows,
		Cost:            cost,
		Revenue:         revenue,
		NetProfit:       revenue - cost,
		Assumptions:     assumptions,
	}
}

func netFlow(flows *types.EnergyFlows, net float64) {
	if net >= 0 {
		flows.GridImportKWH = net
	} else {
		flows.GridExportKWH = -net
	}
}

func reasonFor(action types.ActionTag, negativeFallback bool) string {
	if negativeFallback {
		return "unscheduled negative price, force-charging as a sanity net"
	}
	switch action.ChargeReason {
	case types.ChargeOpportunistic:
		return "opportunistic charge below threshold price"
	case types.ChargeArbitrage:
		return "arbitrage charge to cover a later expensive block"
	case types.ChargeNegativePrice:
		return "charging on a negative-price block"
	case types.ChargeMorningPeakCoverage:
		return "charging to cover tomorrow's morning peak"
	default:
		return "charging"
	}
}

// decisionUIDSuffix builds the mode-tag[:sub-reason] portion of the
// decision UID (spec §4.4); Evaluate prepends the strategy name to form
// the full "<strategy>:<mode-tag>[:<sub-reason>]" path.
func decisionUIDSuffix(action types.ActionTag, negativeFallback bool) string {
	if negativeFallback {
		return "negative_price"
	}
	switch action.Kind {
	case types.ActionCharge:
		if action.ChargeReason == types.ChargeReasonNone {
			return "charge"
		}
		return fmt.Sprintf("charge:%s", chargeReasonSlug(action.ChargeReason))
	case types.ActionBatteryPowered:
		return "battery_powered"
	case types.ActionExport:
		return "export"
	case types.ActionHoldCharge:
		return "hold_charge"
	case types.ActionSolarExcess:
		return "solar_excess"
	default:
		return "grid_powered"
	}
}

func chargeReasonSlug(r types.ChargeReason) string {
	switch r {
	case types.ChargeOpportunistic:
		return "opportunistic"
	case types.ChargeArbitrage:
		return "arbitrage"
	case types.ChargeNegativePrice:
		return "negative_price"
	case types.ChargeMorningPeakCoverage:
		return "morning_peak_coverage"
	default:
		return "unknown"
	}
}
