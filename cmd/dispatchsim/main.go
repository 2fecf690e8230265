// Command dispatchsim runs the strategy family over a sample day of price
// blocks and prints the block-by-block evaluations. It is a thin,
// ambient demonstration/regression harness for the core — not the
// persistence layer, not the inverter adapter, not the user-facing
// configuration surface, all of which remain external collaborators.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	applog "github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/strategy"
	"github.com/solardispatch/core/pkg/types"
)

func main() {
	scenarioPath := lflag.String("scenario", "", "Path to a YAML scenario file (see testdata/ for the format). Empty uses the built-in synthetic day.")

	lflag.Configure()

	level, err := applog.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	applog.SetDefaultLogLevel(level)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = applog.With(ctx, logger)

	scenario, err := loadScenario(*scenarioPath)
	if err != nil {
		applog.Ctx(ctx).ErrorContext(ctx, "failed to load scenario", slog.Any("error", err))
		os.Exit(1)
	}

	selector := strategy.Selector{Strategies: []strategy.Strategy{
		&strategy.AdaptiveAllocator{IsEnabled: scenario.AdaptiveEnabled, BaseParams: scenario.Params},
		&strategy.WinterAdaptive{IsEnabled: scenario.WinterEnabled, Params: scenario.Params},
		&strategy.FixedPriceArbitrage{
			IsEnabled:          scenario.FixedPriceEnabled,
			TargetBatterySOC:   scenario.Params.TargetBatterySOC,
			MinSOCAfterExport:  scenario.Params.MinSOCAfterExport,
			MinProfitThreshold: scenario.FixedPriceMinProfitThreshold,
		},
	}}

	runScenario(ctx, selector, scenario)
}

func runScenario(ctx context.Context, selector strategy.Selector, scenario Scenario) {
	batteryPercent := scenario.InitialBatteryPercent

	for i, block := range scenario.Horizon.Blocks {
		ec := types.EvaluationContext{
			CurrentBlock:           block,
			Horizon:                scenario.Horizon,
			Config:                 scenario.Config,
			BatteryPercent:         batteryPercent,
			Solar:                  scenario.Solar,
			ConsumptionForecastKWH: scenario.ConsumptionForecastKWH,
			GridExportPrice:        scenario.GridExportPrice,
			BatteryAvgChargePrice:  scenario.BatteryAvgChargePrice,
		}

		eval, err := selector.Evaluate(ctx, ec)
		if err != nil {
			applog.Ctx(ctx).ErrorContext(ctx, "evaluation failed", slog.Int("block", i), slog.Any("error", err))
			continue
		}

		fmt.Printf("%s  mode=%-15s  uid=%-30s  cost=%.4f  revenue=%.4f  net=%.4f\n",
			eval.BlockStart.Format("15:04"), eval.Mode.String(), eval.DecisionUID, eval.Cost, eval.Revenue, eval.NetProfit)

		batteryPercent += (eval.EnergyFlows.BatteryChargeKWH - eval.EnergyFlows.BatteryDischargeKWH) / scenario.Config.BatteryCapacityKWH * 100
		if batteryPercent > scenario.Config.MaxSOC {
			batteryPercent = scenario.Config.MaxSOC
		}
		if batteryPercent < scenario.Config.HardwareMinSOC {
			batteryPercent = scenario.Config.HardwareMinSOC
		}
	}
}
