package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/solardispatch/core/pkg/types"
	"gopkg.in/yaml.v3"
)

// Scenario bundles everything runScenario needs for a day of evaluations:
// the control configuration, the strategies' enable flags/params, and the
// inputs a real collaborator would otherwise assemble from ingestion and
// forecasting services, which are out of scope here.
type Scenario struct {
	Config types.ControlConfig  `yaml:"config"`
	Params types.AdaptiveParams `yaml:"params"`

	AdaptiveEnabled              bool    `yaml:"adaptiveEnabled"`
	WinterEnabled                bool    `yaml:"winterEnabled"`
	FixedPriceEnabled            bool    `yaml:"fixedPriceEnabled"`
	FixedPriceMinProfitThreshold float64 `yaml:"fixedPriceMinProfitThreshold"`

	InitialBatteryPercent float64 `yaml:"initialBatteryPercent"`
	BatteryAvgChargePrice float64 `yaml:"batteryAvgChargePrice"`
	GridExportPrice       float64 `yaml:"gridExportPrice"`

	Solar                  types.SolarForecast `yaml:"solar"`
	ConsumptionForecastKWH []float64           `yaml:"consumptionForecastKWH"`

	Horizon types.Horizon `yaml:"-"`

	// RawBlocks is the YAML-friendly shape of a horizon block: a start
	// offset in minutes from midnight rather than a full timestamp, since
	// the sample scenarios only care about time-of-day price shape.
	RawBlocks []rawBlock `yaml:"blocks"`
}

type rawBlock struct {
	StartMinute     int      `yaml:"startMinute"`
	DurationMinutes float64  `yaml:"durationMinutes"`
	RawPrice        float64  `yaml:"rawPrice"`
	EffectivePrice  float64  `yaml:"effectivePrice"`
	SpotSellPrice   *float64 `yaml:"spotSellPrice,omitempty"`
}

// loadScenario reads a YAML scenario file, or builds the built-in synthetic
// day when path is empty.
func loadScenario(path string) (Scenario, error) {
	if path == "" {
		return syntheticScenario(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("opening scenario file: %w", err)
	}
	defer f.Close()

	var s Scenario
	if err := yaml.NewDecoder(f).Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("decoding scenario file: %w", err)
	}
	if err := s.Config.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid control config: %w", err)
	}

	s.Horizon = horizonFromRawBlocks(s.RawBlocks)
	if len(s.ConsumptionForecastKWH) == 0 {
		s.ConsumptionForecastKWH = make([]float64, s.Horizon.Len())
		for i := range s.ConsumptionForecastKWH {
			s.ConsumptionForecastKWH[i] = 0.3
		}
	}
	return s, nil
}

func horizonFromRawBlocks(raw []rawBlock) types.Horizon {
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	blocks := make([]types.PriceBlock, len(raw))
	for i, r := range raw {
		blocks[i] = types.PriceBlock{
			BlockStart:      day.Add(time.Duration(r.StartMinute) * time.Minute),
			DurationMinutes: r.DurationMinutes,
			RawPrice:        r.RawPrice,
			EffectivePrice:  r.EffectivePrice,
			SpotSellPrice:   r.SpotSellPrice,
		}
	}
	return types.Horizon{Blocks: blocks}
}

// syntheticScenario builds a 96-block (15-minute) day with a cheap
// overnight trough, a morning rise, and an evening peak, resembling a
// typical residential time-of-use tariff, so the demo has something
// interesting to shift load around without needing a YAML fixture.
func syntheticScenario() Scenario {
	const n = 96
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	blocks := make([]types.PriceBlock, n)
	consumption := make([]float64, n)

	for i := 0; i < n; i++ {
		ts := day.Add(time.Duration(i) * 15 * time.Minute)
		hour := float64(ts.Hour()) + float64(ts.Minute())/60

		price := 0.14 + 0.04*math.Sin((hour-3)/24*2*math.Pi)
		switch {
		case hour >= 17 && hour < 21:
			price = 0.48
		case hour >= 0 && hour < 5:
			price = 0.06
		}

		blocks[i] = types.PriceBlock{
			BlockStart:      ts,
			DurationMinutes: 15,
			RawPrice:        price,
			EffectivePrice:  price + 0.03,
		}

		switch {
		case hour >= 6 && hour < 9:
			consumption[i] = 0.45
		case hour >= 17 && hour < 21:
			consumption[i] = 0.6
		default:
			consumption[i] = 0.25
		}
	}

	return Scenario{
		Config: types.ControlConfig{
			BatteryCapacityKWH:  13.5,
			MinSOC:              10,
			MaxSOC:              95,
			HardwareMinSOC:      5,
			RoundTripEfficiency: 0.9,
			MaxChargeRateKW:     5,
			GridExportFeePerKWH: 0.01,
			DefaultMode:         types.DefaultModeBackup,
		},
		Params: types.AdaptiveParams{
			TargetBatterySOC:              90,
			MinDischargeSOC:               20,
			BatteryRoundTripEfficiency:    0.9,
			NegativePriceHandlingEnabled:  true,
			OpportunisticChargeThreshold:  0.10,
			MinSavingsThreshold:           0.08,
			ExportEnabled:                 true,
			MinExportSpread:               0.12,
			MinSOCAfterExport:             25,
			SolarConfidenceFactor:         0.85,
			DaylightStartHour:             7,
			DaylightEndHour:               18,
			BootstrapBlockCount:           12,
			ChargePriceEstimationMethod:   types.ChargePriceEstimationBootstrap,
			DemandEstimationMethod:        types.DemandEstimationConsumptionWeighted,
			MaxChargeBlocksPerDay:         20,
			MaxDischargeBlocksPerDay:      16,
			ConsecutiveChargeGroupsEnabled: true,
			GapBridgingEnabled:            true,
			GapBridgingMaxGapBlocks:       2,
			GapBridgingPriceTolerance:     0.02,
			ShortGapRemovalEnabled:        true,
			ShortGapMinSizeBlocks:         1,
			HoldChargeEnabled:             true,
			ChargeReductionFactor:         1.0,
			AdaptiveParametersEnabled:     true,
		},
		AdaptiveEnabled:              true,
		WinterEnabled:                false,
		FixedPriceEnabled:            false,
		FixedPriceMinProfitThreshold: 0.05,
		InitialBatteryPercent:        40,
		BatteryAvgChargePrice:        0.12,
		GridExportPrice:              0.08,
		Solar:                        types.SolarForecast{RemainingTodayKWH: 9, TomorrowTotalKWH: 7},
		ConsumptionForecastKWH:       consumption,
		Horizon:                      types.Horizon{Blocks: blocks},
	}
}
