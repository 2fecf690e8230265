package types

// SolarForecast bundles the three solar scalars an evaluation needs (spec
// §3): the current block's expected solar, the remaining-today total, and
// tomorrow's total.
type SolarForecast struct {
	CurrentBlockKWH   float64 `json:"currentBlockKWH"`
	RemainingTodayKWH float64 `json:"remainingTodayKWH"`
	TomorrowTotalKWH  float64 `json:"tomorrowTotalKWH"`
}

// EvaluationContext is the per-evaluation bundle assembled by the
// collaborator on each tick (spec §3's "Evaluation context").
type EvaluationContext struct {
	CurrentBlock PriceBlock
	Horizon      Horizon
	Config       ControlConfig

	BatteryPercent float64 // 0-100
	Solar          SolarForecast

	// ConsumptionForecastKWH is the per-block consumption forecast, same
	// length as Horizon.Blocks. Used as the fallback when
	// HourlyConsumptionProfile is absent for a given block.
	ConsumptionForecastKWH []float64

	// HourlyConsumptionProfile is 24 entries of kWh/h, optional.
	HourlyConsumptionProfile *[24]float64

	// GridExportPrice is the revenue per kWh exported for the current
	// block, used when the current block's SpotSellPrice is absent (fixed
	// sell contract).
	GridExportPrice float64

	// BatteryAvgChargePrice is the weighted-average price at which the
	// battery's current energy was acquired, used for arbitrage breakeven.
	// 0 if unknown.
	BatteryAvgChargePrice float64

	// TargetBatterySOC and MinSOCAfterExport are carried over from the
	// resolved AdaptiveParams that produced the schedule being evaluated;
	// the evaluator needs them to pick ForceCharge vs BackUpMode and
	// ForceDischarge vs the low-SOC SelfUse fallback (spec §4.4).
	TargetBatterySOC  float64
	MinSOCAfterExport float64
}

// ConsumptionForBlock returns the household consumption forecast (kWh) for
// horizon block index i, preferring the hourly profile when present (spec
// §4.3 Phase 2: "Household consumption for a block uses the hourly profile
// (entry / 4) when available, else the fallback").
func (c EvaluationContext) ConsumptionForBlock(i int) float64 {
	if c.HourlyConsumptionProfile != nil && i >= 0 && i < c.Horizon.Len() {
		hour := c.Horizon.Blocks[i].BlockStart.Hour()
		perHour := c.HourlyConsumptionProfile[hour]
		// "entry / 4" in the spec assumes 15-minute blocks; generalize to
		// whatever duration this horizon actually uses.
		return perHour * c.Horizon.Blocks[i].DurationHours()
	}
	if i >= 0 && i < len(c.ConsumptionForecastKWH) {
		return c.ConsumptionForecastKWH[i]
	}
	return 0
}
