package strategy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/solardispatch/core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoContext() types.EvaluationContext {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n := 96
	blocks := make([]types.PriceBlock, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * 15 * time.Minute)
		price := 0.15
		if ts.Hour() >= 17 && ts.Hour() < 21 {
			price = 0.55
		}
		blocks[i] = types.PriceBlock{BlockStart: ts, DurationMinutes: 15, RawPrice: price, EffectivePrice: price}
	}
	consumption := make([]float64, n)
	for i := range consumption {
		consumption[i] = 0.3
	}
	return types.EvaluationContext{
		CurrentBlock: blocks[0],
		Horizon:      types.Horizon{Blocks: blocks},
		Config: types.ControlConfig{
			BatteryCapacityKWH:  10,
			MinSOC:              10,
			MaxSOC:              95,
			HardwareMinSOC:      5,
			RoundTripEfficiency: 0.9,
			MaxChargeRateKW:     5,
		},
		BatteryPercent:         40,
		Solar:                  types.SolarForecast{RemainingTodayKWH: 8, TomorrowTotalKWH: 6},
		ConsumptionForecastKWH: consumption,
		GridExportPrice:        0.05,
	}
}

func TestAdaptiveAllocator_Evaluate(t *testing.T) {
	s := &AdaptiveAllocator{
		IsEnabled: true,
		BaseParams: types.AdaptiveParams{
			TargetBatterySOC:           90,
			MinSOCAfterExport:          20,
			BatteryRoundTripEfficiency: 0.9,
			MinSavingsThreshold:        0.1,
			BootstrapBlockCount:        8,
			SolarConfidenceFactor:      0.8,
			DaylightStartHour:          6,
			DaylightEndHour:            19,
		},
	}
	eval, err := s.Evaluate(context.Background(), demoContext())
	require.NoError(t, err)
	assert.NotEmpty(t, eval.DecisionUID)
	assert.Contains(t, eval.DecisionUID, "adaptive:")
}

func TestSelector_ReturnsFirstEnabled(t *testing.T) {
	disabled := &AdaptiveAllocator{IsEnabled: false}
	fallback := &WinterAdaptive{IsEnabled: true, Params: types.AdaptiveParams{TargetBatterySOC: 90}}
	sel := Selector{Strategies: []Strategy{disabled, fallback}}

	eval, err := sel.Evaluate(context.Background(), demoContext())
	require.NoError(t, err)
	assert.Contains(t, eval.DecisionUID, "winter_adaptive:")
}

func TestSelector_NoEnabledStrategyErrors(t *testing.T) {
	sel := Selector{Strategies: []Strategy{&AdaptiveAllocator{IsEnabled: false}}}
	_, err := sel.Evaluate(context.Background(), demoContext())
	assert.Error(t, err)
}

func TestFixedPriceArbitrage_NoSpotDataFallsBackToSelfUse(t *testing.T) {
	s := &FixedPriceArbitrage{IsEnabled: true, TargetBatterySOC: 90, MinProfitThreshold: 0.05}
	ec := demoContext()
	eval, err := s.Evaluate(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, types.SelfUse, eval.Mode)
	assert.Contains(t, eval.Reason, "no spot-sell data")
	assert.Equal(t, "fixed_price_arbitrage:no_spot_data", eval.DecisionUID)
}

func TestFixedPriceArbitrage_ExportsOnProfitableSpread(t *testing.T) {
	s := &FixedPriceArbitrage{IsEnabled: true, TargetBatterySOC: 90, MinProfitThreshold: 0.05}
	ec := demoContext()
	spot := ec.CurrentBlock.RawPrice + 0.30
	ec.CurrentBlock.SpotSellPrice = &spot
	ec.Horizon.Blocks[0].SpotSellPrice = &spot

	eval, err := s.Evaluate(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, types.ForceDischarge, eval.Mode)
	assert.True(t, strings.HasSuffix(eval.DecisionUID, "discharge"))
}

func TestFixedPriceArbitrage_NoOpportunityBelowThreshold(t *testing.T) {
	s := &FixedPriceArbitrage{IsEnabled: true, TargetBatterySOC: 30, MinProfitThreshold: 0.05}
	ec := demoContext()
	ec.BatteryPercent = 80
	spot := ec.CurrentBlock.RawPrice + 0.01
	ec.CurrentBlock.SpotSellPrice = &spot
	ec.Horizon.Blocks[0].SpotSellPrice = &spot

	eval, err := s.Evaluate(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, types.SelfUse, eval.Mode)
	assert.True(t, strings.HasSuffix(eval.DecisionUID, "no_opportunity"))
}

func TestFixedPriceArbitrage_EmptyHorizonDoesNotPanic(t *testing.T) {
	s := &FixedPriceArbitrage{IsEnabled: true, TargetBatterySOC: 90, MinProfitThreshold: 0.05}
	ec := types.EvaluationContext{Horizon: types.Horizon{}}

	eval, err := s.Evaluate(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, "fixed_price_arbitrage:no_spot_data", eval.DecisionUID)
}

func TestEvaluateAll_RunsEveryStrategy(t *testing.T) {
	strategies := []Strategy{
		&AdaptiveAllocator{IsEnabled: true, BaseParams: types.AdaptiveParams{TargetBatterySOC: 90, BatteryRoundTripEfficiency: 0.9, BootstrapBlockCount: 4, SolarConfidenceFactor: 1, DaylightStartHour: 6, DaylightEndHour: 19}},
		&WinterAdaptive{IsEnabled: true, Params: types.AdaptiveParams{TargetBatterySOC: 90}},
		&FixedPriceArbitrage{IsEnabled: true, TargetBatterySOC: 90, MinProfitThreshold: 0.05},
	}
	results := EvaluateAll(context.Background(), strategies, demoContext())
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotEmpty(t, r.Name)
	}
}
