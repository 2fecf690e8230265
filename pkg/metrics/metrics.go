// Package metrics computes the day-profile statistics bundle (spec §4.1)
// that the Parameter Resolver uses to adapt planning parameters to how
// volatile, expensive, or solar-rich a given horizon looks. Compute is a
// pure function: same inputs, same DayMetrics, every time.
package metrics

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/types"
)

// Compute derives a DayMetrics bundle from the horizon and forecasts,
// grounded on the teacher's buildHourlyEnergyModel/calculateSolarTrend
// style: a single pass (or two) over the slice, every derived ratio traced
// at debug level, epsilon-guarded division throughout.
func Compute(
	ctx context.Context,
	horizon types.Horizon,
	solarRemainingToday float64,
	solarTomorrow float64,
	batteryAvgChargePrice float64,
	dailyConsumptionEstimate float64,
) types.DayMetrics {
	n := horizon.Len()
	if n == 0 {
		return types.DayMetrics{}
	}

	var sum, sumSq, min, max float64
	min = math.Inf(1)
	max = math.Inf(-1)
	var negativeCount int

	for _, b := range horizon.Blocks {
		p := b.EffectivePrice
		sum += p
		sumSq += p * p
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		if p < 0 {
			negativeCount++
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		// guards against floating-point error producing a tiny negative
		// variance for near-constant price series.
		variance = 0
	}
	stddev := math.Sqrt(variance)

	priceCV := 0.0
	if mean != 0 {
		priceCV = stddev / mean
	}

	priceSpreadRatio := (max - min) / math.Max(mean, types.Epsilon)

	priceLevelVsChargeCost := (mean - batteryAvgChargePrice) / math.Max(batteryAvgChargePrice, types.Epsilon)

	solarRatio := solarRemainingToday / math.Max(dailyConsumptionEstimate, types.Epsilon)
	tomorrowSolarRatio := solarTomorrow / math.Max(dailyConsumptionEstimate, types.Epsilon)

	negativePriceFraction := float64(negativeCount) / float64(n)

	tomorrowPriceRatio := tomorrowPriceRatio(horizon)

	m := types.DayMetrics{
		PriceCV:                priceCV,
		PriceSpreadRatio:       priceSpreadRatio,
		PriceLevelVsChargeCost: priceLevelVsChargeCost,
		SolarRatio:             solarRatio,
		TomorrowSolarRatio:     tomorrowSolarRatio,
		TomorrowPriceRatio:     tomorrowPriceRatio,
		NegativePriceFraction:  negativePriceFraction,
	}

	log.Ctx(ctx).DebugContext(ctx, "day metrics computed",
		slog.Float64("priceCV", m.PriceCV),
		slog.Float64("priceSpreadRatio", m.PriceSpreadRatio),
		slog.Float64("priceLevelVsChargeCost", m.PriceLevelVsChargeCost),
		slog.Float64("solarRatio", m.SolarRatio),
		slog.Float64("tomorrowSolarRatio", m.TomorrowSolarRatio),
		slog.Any("tomorrowPriceRatio", m.TomorrowPriceRatio),
		slog.Float64("negativePriceFraction", m.NegativePriceFraction),
	)

	return m
}

// tomorrowPriceRatio is mean(effective price of blocks dated tomorrow in
// UTC) / mean(today's blocks), or nil if the horizon has no blocks dated
// tomorrow relative to its own first block (spec §4.1: "None if no
// tomorrow blocks present").
func tomorrowPriceRatio(horizon types.Horizon) *float64 {
	if horizon.Len() == 0 {
		return nil
	}
	today := horizon.Blocks[0].BlockStart.UTC()
	todayY, todayM, todayD := today.Date()
	tomorrowDate := time.Date(todayY, todayM, todayD+1, 0, 0, 0, 0, time.UTC)

	var todaySum, tomorrowSum float64
	var todayCount, tomorrowCount int

	for _, b := range horizon.Blocks {
		t := b.BlockStart.UTC()
		y, mo, d := t.Date()
		switch {
		case y == todayY && mo == todayM && d == todayD:
			todaySum += b.EffectivePrice
			todayCount++
		case y == tomorrowDate.Year() && mo == tomorrowDate.Month() && d == tomorrowDate.Day():
			tomorrowSum += b.EffectivePrice
			tomorrowCount++
		}
	}

	if tomorrowCount == 0 {
		return nil
	}

	todayMean := 0.0
	if todayCount > 0 {
		todayMean = todaySum / float64(todayCount)
	}
	tomorrowMean := tomorrowSum / float64(tomorrowCount)

	ratio := tomorrowMean / math.Max(math.Abs(todayMean), types.Epsilon)
	if todayMean < 0 {
		// preserve sign semantics: if today was (rare) negative on average,
		// a naive division by abs() would flip the ratio's meaning, so
		// recompute signed against the epsilon-guarded raw mean instead.
		ratio = tomorrowMean / mathSignEps(todayMean)
	}
	return &ratio
}

func mathSignEps(v float64) float64 {
	if v >= 0 {
		return math.Max(v, types.Epsilon)
	}
	return math.Min(v, -types.Epsilon)
}
