package types

// DayMetrics is the small statistics bundle derived from the price
// sequence and forecasts (spec §4.1). It is a pure function of its inputs.
type DayMetrics struct {
	PriceCV                float64 `json:"priceCV"`
	PriceSpreadRatio        float64 `json:"priceSpreadRatio"`
	PriceLevelVsChargeCost  float64 `json:"priceLevelVsChargeCost"`
	SolarRatio              float64 `json:"solarRatio"`
	TomorrowSolarRatio      float64 `json:"tomorrowSolarRatio"`
	// TomorrowPriceRatio is nil when the horizon has no blocks for
	// tomorrow-in-UTC.
	TomorrowPriceRatio     *float64 `json:"tomorrowPriceRatio,omitempty"`
	NegativePriceFraction  float64  `json:"negativePriceFraction"`
}

// Epsilon is the small constant used throughout the core to avoid division
// by zero in ratio computations (spec §4.1).
const Epsilon = 1e-6
