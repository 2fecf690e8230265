package types

// ScheduleStats summarizes the planner's output: counts by category and
// the blended/average charge price (spec §4.3).
type ScheduleStats struct {
	ChargeOpportunisticCount       int `json:"chargeOpportunisticCount"`
	ChargeArbitrageCount           int `json:"chargeArbitrageCount"`
	ChargeNegativePriceCount       int `json:"chargeNegativePriceCount"`
	ChargeMorningPeakCoverageCount int `json:"chargeMorningPeakCoverageCount"`
	BatteryPoweredCount            int `json:"batteryPoweredCount"`
	ExportCount                    int `json:"exportCount"`
	GridPoweredCount               int `json:"gridPoweredCount"`
	HoldChargeCount                int `json:"holdChargeCount"`
	SolarExcessCount                int `json:"solarExcessCount"`

	// AveragePlannedChargePrice is Phase 6's blended price: the
	// energy-weighted mean of the battery's existing energy at
	// BatteryAvgChargePrice and the Charge{Arbitrage} blocks. Opportunistic,
	// negative-price and morning-peak charge blocks are not included.
	// AllocateWinter sets it to BatteryAvgChargePrice.
	AveragePlannedChargePrice float64 `json:"averagePlannedChargePrice"`

	// BudgetKWH is the kWh of battery energy earmarked for expensive-hour
	// discharge after planned charging and efficiency losses (Phase 6).
	BudgetKWH float64 `json:"budgetKWH"`
}

// Schedule is the Day Planner's output: one tagged action per horizon
// block, plus summary statistics.
type Schedule struct {
	Actions []ActionTag   `json:"actions"`
	Stats   ScheduleStats `json:"stats"`
}

// Recount recomputes Stats.*Count from Actions. AveragePlannedChargePrice
// and BudgetKWH are set by the planner directly since they require price
// data Recount doesn't have.
func (s *Schedule) Recount() {
	var stats ScheduleStats
	stats.AveragePlannedChargePrice = s.Stats.AveragePlannedChargePrice
	stats.BudgetKWH = s.Stats.BudgetKWH
	for _, a := range s.Actions {
		switch a.Kind {
		case ActionGridPowered:
			stats.GridPoweredCount++
		case ActionCharge:
			switch a.ChargeReason {
			case ChargeOpportunistic:
				stats.ChargeOpportunisticCount++
			case ChargeArbitrage:
				stats.ChargeArbitrageCount++
			case ChargeNegativePrice:
				stats.ChargeNegativePriceCount++
			case ChargeMorningPeakCoverage:
				stats.ChargeMorningPeakCoverageCount++
			}
		case ActionBatteryPowered:
			stats.BatteryPoweredCount++
		case ActionExport:
			stats.ExportCount++
		case ActionHoldCharge:
			stats.HoldChargeCount++
		case ActionSolarExcess:
			stats.SolarExcessCount++
		}
	}
	s.Stats = stats
}
