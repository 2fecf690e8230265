package planner

import (
	"context"
	"testing"
	"time"

	"github.com/solardispatch/core/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestAllocateWinter_ScheduleLengthMatchesHorizon(t *testing.T) {
	h := flatHorizon(48, 0.20)
	in := baseInput(h)
	sched := AllocateWinter(context.Background(), in)
	assert.Len(t, sched.Actions, 48)
}

func TestAllocateWinter_TopTierPricedBlocksDischarge(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 24
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		price := 0.10
		if i == 20 { // one clear spike
			price = 1.00
		}
		blocks[i] = types.PriceBlock{BlockStart: start.Add(time.Duration(i) * time.Hour), DurationMinutes: 60, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.Params.ExportEnabled = true
	in.Params.MinExportSpread = 0.2
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 1.0
	}

	sched := AllocateWinter(context.Background(), in)
	assert.Equal(t, types.ActionExport, sched.Actions[20].Kind)
}

func TestAllocateWinter_TomorrowExpensivePreservesMoreBattery(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 24
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		price := 0.10 + float64(i)*0.02
		blocks[i] = types.PriceBlock{BlockStart: start.Add(time.Duration(i) * time.Hour), DurationMinutes: 60, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 1.0
	}

	baseline := AllocateWinter(context.Background(), in)

	ratio := 1.5
	in.TomorrowPriceRatio = &ratio
	preserved := AllocateWinter(context.Background(), in)

	baselineDischarge := baseline.Stats.BatteryPoweredCount + baseline.Stats.ExportCount
	preservedDischarge := preserved.Stats.BatteryPoweredCount + preserved.Stats.ExportCount
	assert.LessOrEqual(t, preservedDischarge, baselineDischarge)
}

func TestAllocateWinter_MorningPeakCoverageChargesCheapestOvernightBlocks(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 24 // one block per hour, midnight to 23:00
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		price := 0.20
		if i == 2 { // cheapest overnight hour
			price = 0.05
		}
		blocks[i] = types.PriceBlock{BlockStart: start.Add(time.Duration(i) * time.Hour), DurationMinutes: 60, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.BatteryPercent = 15
	in.Params.MorningPeakCoverageEnabled = true
	in.Params.MorningPeakStartHour = 6
	in.Params.MorningPeakEndHour = 9
	in.Params.TargetSOCAfterMorningPeak = 20
	in.Params.MorningPeakConsumptionPerBlockKWH = 0.5
	in.Params.MinOvernightChargeBlocks = 1

	sched := AllocateWinter(context.Background(), in)
	assert.Greater(t, sched.Stats.ChargeMorningPeakCoverageCount, 0)
	assert.Equal(t, types.ChargeMorningPeakCoverage, sched.Actions[2].ChargeReason, "cheapest overnight block should be the first one charged")
	for h := 6; h < 9; h++ {
		assert.NotEqual(t, types.ActionCharge, sched.Actions[h].Kind, "morning peak blocks themselves are never charge targets")
	}
}

func TestAllocateWinter_MorningPeakCoverageDisabledLeavesBlocksGridPowered(t *testing.T) {
	h := flatHorizon(96, 0.20)
	in := baseInput(h)
	in.BatteryPercent = 15

	sched := AllocateWinter(context.Background(), in)
	assert.Equal(t, 0, sched.Stats.ChargeMorningPeakCoverageCount)
}

func TestAllocateWinter_MaxDischargeBlocksCapRespected(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 24
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		price := 0.10 + float64(i)*0.05
		blocks[i] = types.PriceBlock{BlockStart: start.Add(time.Duration(i) * time.Hour), DurationMinutes: 60, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.Params.MaxDischargeBlocksPerDay = 2
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 1.0
	}

	sched := AllocateWinter(context.Background(), in)
	assert.LessOrEqual(t, sched.Stats.BatteryPoweredCount+sched.Stats.ExportCount, 2)
}
