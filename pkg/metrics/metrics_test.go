package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/solardispatch/core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func horizonOfPrices(start time.Time, prices []float64) types.Horizon {
	blocks := make([]types.PriceBlock, len(prices))
	for i, p := range prices {
		blocks[i] = types.PriceBlock{
			BlockStart:      start.Add(time.Duration(i) * 15 * time.Minute),
			DurationMinutes: 15,
			RawPrice:        p,
			EffectivePrice:  p,
		}
	}
	return types.Horizon{Blocks: blocks}
}

func TestCompute_FlatPrices(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]float64, 96)
	for i := range prices {
		prices[i] = 3.0
	}
	h := horizonOfPrices(start, prices)

	m := Compute(context.Background(), h, 5, 10, 2.0, 20)

	assert.InDelta(t, 0.0, m.PriceCV, 1e-9, "flat prices => zero CV")
	assert.InDelta(t, 0.0, m.PriceSpreadRatio, 1e-9)
	assert.InDelta(t, 0.5, m.PriceLevelVsChargeCost, 1e-9) // (3-2)/2
	assert.InDelta(t, 0.25, m.SolarRatio, 1e-9)            // 5/20
	assert.InDelta(t, 0.5, m.TomorrowSolarRatio, 1e-9)      // 10/20
	assert.InDelta(t, 0.0, m.NegativePriceFraction, 1e-9)
}

func TestCompute_EmptyHorizon(t *testing.T) {
	m := Compute(context.Background(), types.Horizon{}, 0, 0, 0, 0)
	assert.Equal(t, types.DayMetrics{}, m)
}

func TestCompute_NegativePriceFraction(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]float64, 96)
	for i := range prices {
		prices[i] = 3.0
	}
	for i := 12; i < 16; i++ {
		prices[i] = -0.5
	}
	h := horizonOfPrices(start, prices)

	m := Compute(context.Background(), h, 5, 10, 2.0, 20)
	assert.InDelta(t, 4.0/96.0, m.NegativePriceFraction, 1e-9)
}

func TestCompute_TomorrowPriceRatio(t *testing.T) {
	start := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	var blocks []types.PriceBlock
	ts := start
	// 2 hours today (8 blocks) at 2.0, then tomorrow at 4.0
	for i := 0; i < 8; i++ {
		blocks = append(blocks, types.PriceBlock{BlockStart: ts, DurationMinutes: 15, EffectivePrice: 2.0})
		ts = ts.Add(15 * time.Minute)
	}
	for i := 0; i < 16; i++ {
		blocks = append(blocks, types.PriceBlock{BlockStart: ts, DurationMinutes: 15, EffectivePrice: 4.0})
		ts = ts.Add(15 * time.Minute)
	}
	h := types.Horizon{Blocks: blocks}

	m := Compute(context.Background(), h, 0, 0, 0, 1)
	require.NotNil(t, m.TomorrowPriceRatio)
	assert.InDelta(t, 2.0, *m.TomorrowPriceRatio, 1e-9)
}

func TestCompute_NoTomorrowBlocks(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := horizonOfPrices(start, []float64{1, 2, 3})
	m := Compute(context.Background(), h, 0, 0, 0, 1)
	assert.Nil(t, m.TomorrowPriceRatio)
}
