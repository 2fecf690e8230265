package planner

import (
	"context"
	"testing"
	"time"

	"github.com/solardispatch/core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatHorizon(n int, price float64) types.Horizon {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		blocks[i] = types.PriceBlock{
			BlockStart:      start.Add(time.Duration(i) * 15 * time.Minute),
			DurationMinutes: 15,
			RawPrice:        price,
			EffectivePrice:  price,
		}
	}
	return types.Horizon{Blocks: blocks}
}

func baseInput(h types.Horizon) Input {
	return Input{
		Horizon:                h,
		BatteryPercent:         40,
		BatteryCapacityKWH:     10,
		MaxChargeRateKW:        5,
		MinSOC:                 10,
		SolarRemainingTodayKWH: 0,
		FallbackConsumptionKWH: make([]float64, h.Len()),
		Params: types.AdaptiveParams{
			TargetBatterySOC:           90,
			BatteryRoundTripEfficiency: 0.9,
			MinSavingsThreshold:        0.1,
			BootstrapBlockCount:        4,
			SolarConfidenceFactor:      1,
			DaylightStartHour:          6,
			DaylightEndHour:            19,
		},
	}
}

func TestAllocate_ScheduleLengthMatchesHorizon(t *testing.T) {
	h := flatHorizon(96, 0.20)
	in := baseInput(h)
	sched := Allocate(context.Background(), in)
	assert.Len(t, sched.Actions, 96)
}

func TestAllocate_EmptyHorizon(t *testing.T) {
	sched := Allocate(context.Background(), baseInput(types.Horizon{}))
	assert.Empty(t, sched.Actions)
}

func TestAllocate_FlatPricesNoOpportunisticChargeLeavesEverythingGridPowered(t *testing.T) {
	h := flatHorizon(20, 0.20)
	in := baseInput(h)
	in.FallbackConsumptionKWH = make([]float64, 20)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 0.3
	}
	sched := Allocate(context.Background(), in)
	for i, a := range sched.Actions {
		require.Equal(t, types.ActionGridPowered, a.Kind, "block %d should stay GridPowered under flat prices", i)
	}
}

func TestAllocate_NegativePricesTaggedWhenEnabled(t *testing.T) {
	h := flatHorizon(10, -0.05)
	in := baseInput(h)
	in.Params.NegativePriceHandlingEnabled = true
	sched := Allocate(context.Background(), in)
	for i, a := range sched.Actions {
		assert.Equal(t, types.ActionCharge, a.Kind, "block %d", i)
		assert.Equal(t, types.ChargeNegativePrice, a.ChargeReason, "block %d", i)
	}
}

func TestAllocate_CheapMorningExpensiveEveningShiftsLoadToBattery(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 96
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * 15 * time.Minute)
		price := 0.10
		if ts.Hour() >= 17 && ts.Hour() < 21 {
			price = 0.60
		}
		blocks[i] = types.PriceBlock{BlockStart: ts, DurationMinutes: 15, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.Params.MinSavingsThreshold = 0.05
	in.Params.BootstrapBlockCount = 8
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 0.3
	}

	sched := Allocate(context.Background(), in)
	require.NotZero(t, sched.Stats.BatteryPoweredCount+sched.Stats.ExportCount, "some expensive evening block should be covered by battery")

	for i, b := range h.Blocks {
		if sched.Actions[i].Kind == types.ActionBatteryPowered || sched.Actions[i].Kind == types.ActionExport {
			assert.GreaterOrEqual(t, b.BlockStart.Hour(), 17)
		}
	}
}

func TestAllocate_MaxDischargeBlocksCapRespected(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 40
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		blocks[i] = types.PriceBlock{
			BlockStart:      start.Add(time.Duration(i) * 15 * time.Minute),
			DurationMinutes: 15,
			RawPrice:        0.10 + float64(i)*0.01,
			EffectivePrice:  0.10 + float64(i)*0.01,
		}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.Params.MaxDischargeBlocksPerDay = 3
	in.Params.MinSavingsThreshold = 0.01
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 0.5
	}

	sched := Allocate(context.Background(), in)
	assert.LessOrEqual(t, sched.Stats.BatteryPoweredCount+sched.Stats.ExportCount, 3)
}

func TestAllocate_ConsecutiveChargeGroupsNoIsolatedCharge(t *testing.T) {
	h := flatHorizon(30, 0.15)
	in := baseInput(h)
	in.Params.OpportunisticChargeThreshold = 0.20 // everything charges opportunistically
	in.Params.ConsecutiveChargeGroupsEnabled = true
	sched := Allocate(context.Background(), in)

	for i, a := range sched.Actions {
		if !a.IsCharge() {
			continue
		}
		leftCharge := i > 0 && sched.Actions[i-1].IsCharge()
		rightCharge := i < len(sched.Actions)-1 && sched.Actions[i+1].IsCharge()
		assert.True(t, leftCharge || rightCharge, "block %d is an isolated charge block", i)
	}
}

func TestAllocate_HoldChargeFillsGapBetweenChargeAndDischarge(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 16
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		price := 0.10 // blocks 0-7: cheap, charged opportunistically
		switch {
		case i >= 12:
			price = 0.80 // blocks 12-15: expensive, covered by the battery
		case i >= 8:
			price = 0.20 // blocks 8-11: the gap, too cheap to be worth discharging for
		}
		blocks[i] = types.PriceBlock{BlockStart: start.Add(time.Duration(i) * 15 * time.Minute), DurationMinutes: 15, RawPrice: price, EffectivePrice: price}
	}
	h := types.Horizon{Blocks: blocks}
	in := baseInput(h)
	in.Params.OpportunisticChargeThreshold = 0.15
	in.Params.HoldChargeEnabled = true
	in.Params.MinSavingsThreshold = 0.3
	in.FallbackConsumptionKWH = make([]float64, n)
	for i := range in.FallbackConsumptionKWH {
		in.FallbackConsumptionKWH[i] = 0.5
	}

	sched := Allocate(context.Background(), in)
	assert.NotZero(t, sched.Stats.HoldChargeCount)
}
