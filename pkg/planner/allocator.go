// Package planner implements the Day Planner (spec §4.3): the eleven-phase
// Adaptive Budget Allocator that turns a horizon, resolved parameters, and
// battery/solar/consumption state into a per-block schedule of action
// tags. It also implements the legacy Winter Adaptive planner (winter.go).
//
// Every phase here may only transition blocks currently tagged
// types.ActionGridPowered, the zero value every schedule starts in, with
// two exceptions: Phase 9 upgrades BatteryPowered blocks to Export, and
// the consecutive-charge-group step of Phase 11 may retag any neighbor of
// an isolated charge block. This matches the teacher's style of an explicit initial/default state
// (the teacher's own BatteryModeNoChange is the analogous zero value).
package planner

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/solardispatch/core/pkg/log"
	"github.com/solardispatch/core/pkg/types"
)

// Input bundles everything the Adaptive Allocator needs (spec §4.3's input
// list), plus the round-trip efficiency and minimum usable SOC it needs to
// do the battery-energy arithmetic of Phases 3/4/6.
type Input struct {
	Horizon                  types.Horizon
	Params                   types.AdaptiveParams
	BatteryPercent           float64
	BatteryCapacityKWH       float64
	MaxChargeRateKW          float64
	MinSOC                   float64 // control config's minimum usable SOC
	SolarRemainingTodayKWH   float64
	HourlyConsumptionProfile *[24]float64
	FallbackConsumptionKWH   []float64 // per horizon block, kWh
	BatteryAvgChargePrice    float64
	TomorrowPriceRatio       *float64 // only consulted by AllocateWinter's tomorrow-preservation rule
}

// state carries the scratch values computed once in Phase 2 and threaded
// through the remaining phases.
type state struct {
	in                    Input
	actions               []types.ActionTag
	netConsumption        []float64
	solarForBlock         []float64
	energyPerChargeBlock  float64
	existingEnergyKWH     float64
	targetUsableEnergyKWH float64
	blendedAvgChargePrice float64
	budgetKWH             float64
	demandKWH             float64
	estimatedChargePrice  float64
	chargeBlocksNeeded    int
}

// Allocate runs the eleven-phase Adaptive Budget Allocator and returns the
// resulting schedule. Capacity/rate/efficiency of zero degrade to an
// all-GridPowered schedule per spec §7 rather than erroring.
func Allocate(ctx context.Context, in Input) types.Schedule {
	n := in.Horizon.Len()
	actions := make([]types.ActionTag, n)
	// zero value is ActionGridPowered already, but set explicitly for clarity.
	for i := range actions {
		actions[i] = types.GridPowered
	}

	if n == 0 {
		return types.Schedule{Actions: actions}
	}

	s := &state{in: in, actions: actions}
	s.computeConsumptionAndSolar(ctx)

	phase1NegativePrices(s)
	phase2SolarAlreadyComputed() // Phase 2 is computeConsumptionAndSolar above; kept as a named step for readability.
	phase3DemandEstimation(ctx, s)
	phase4ChargeBlockCount(ctx, s)
	phase5ChargeBlockSelection(s)
	phase6Budget(s)
	sortedDescending := phase7RankExpensiveBlocks(s)
	phase8AllocateBattery(s, sortedDescending)
	phase9ExportUpgrades(s)
	phase10SolarExcess(s)
	phase11PostProcess(s)

	sched := types.Schedule{Actions: s.actions}
	sched.Recount()
	sched.Stats.AveragePlannedChargePrice = s.blendedAvgChargePrice
	sched.Stats.BudgetKWH = s.budgetKWH

	log.Ctx(ctx).DebugContext(ctx, "day plan allocated",
		slog.Int("blocks", n),
		slog.Int("chargeArbitrage", sched.Stats.ChargeArbitrageCount),
		slog.Int("chargeOpportunistic", sched.Stats.ChargeOpportunisticCount),
		slog.Int("chargeNegativePrice", sched.Stats.ChargeNegativePriceCount),
		slog.Int("batteryPowered", sched.Stats.BatteryPoweredCount),
		slog.Int("export", sched.Stats.ExportCount),
		slog.Int("holdCharge", sched.Stats.HoldChargeCount),
		slog.Int("solarExcess", sched.Stats.SolarExcessCount),
		slog.Float64("blendedAvgChargePrice", s.blendedAvgChargePrice),
		slog.Float64("budgetKWH", s.budgetKWH),
	)

	return sched
}

func phase2SolarAlreadyComputed() {}

// Phase 1 — negative prices.
func phase1NegativePrices(s *state) {
	if !s.in.Params.NegativePriceHandlingEnabled {
		return
	}
	for i, b := range s.in.Horizon.Blocks {
		if b.EffectivePrice < 0 {
			s.actions[i] = types.Charge(types.ChargeNegativePrice)
		}
	}
}

// computeConsumptionAndSolar is Phase 2 — solar distribution and net
// consumption.
func (s *state) computeConsumptionAndSolar(ctx context.Context) {
	n := s.in.Horizon.Len()
	s.solarForBlock = make([]float64, n)
	s.netConsumption = make([]float64, n)

	effectiveSolar := s.in.SolarRemainingTodayKWH * s.in.Params.SolarConfidenceFactor

	var daylightIdx []int
	for i, b := range s.in.Horizon.Blocks {
		h := b.BlockStart.Hour()
		if inDaylight(h, s.in.Params.DaylightStartHour, s.in.Params.DaylightEndHour) {
			daylightIdx = append(daylightIdx, i)
		}
	}

	var perBlockSolar float64
	if len(daylightIdx) > 0 {
		perBlockSolar = effectiveSolar / float64(len(daylightIdx))
	}
	for _, i := range daylightIdx {
		s.solarForBlock[i] = perBlockSolar
	}

	for i, b := range s.in.Horizon.Blocks {
		consumption := s.consumptionForBlock(i, b)
		net := consumption - s.solarForBlock[i]
		if net < 0 {
			net = 0
		}
		s.netConsumption[i] = net
	}

	log.Ctx(ctx).DebugContext(ctx, "solar distribution computed",
		slog.Float64("effectiveSolarKWH", effectiveSolar),
		slog.Int("daylightBlocks", len(daylightIdx)),
		slog.Float64("perBlockSolarKWH", perBlockSolar),
	)
}

func (s *state) consumptionForBlock(i int, b types.PriceBlock) float64 {
	if s.in.HourlyConsumptionProfile != nil {
		perHour := s.in.HourlyConsumptionProfile[b.BlockStart.Hour()]
		return perHour * b.DurationHours()
	}
	if i < len(s.in.FallbackConsumptionKWH) {
		return s.in.FallbackConsumptionKWH[i]
	}
	return 0
}

// inDaylight reports whether hour h falls in [start, end), handling a
// window that wraps past midnight (end <= start) by treating it as the
// complement.
func inDaylight(h, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// Phase 3 — demand estimation.
func phase3DemandEstimation(ctx context.Context, s *state) {
	blockHours := 0.25
	if s.in.Horizon.Len() > 0 {
		blockHours = s.in.Horizon.Blocks[0].DurationHours()
	}
	s.energyPerChargeBlock = s.in.MaxChargeRateKW * blockHours

	efficiency := s.in.Params.BatteryRoundTripEfficiency
	if efficiency <= 0 {
		efficiency = 1
	}
	s.existingEnergyKWH = math.Max((s.in.BatteryPercent-s.in.MinSOC)/100.0, 0) * s.in.BatteryCapacityKWH * efficiency
	s.targetUsableEnergyKWH = math.Max((s.in.Params.TargetBatterySOC-s.in.MinSOC)/100.0, 0) * s.in.BatteryCapacityKWH * efficiency

	gridPowered := s.gridPoweredIndices()
	ascending := append([]int(nil), gridPowered...)
	sort.SliceStable(ascending, func(a, b int) bool {
		return s.in.Horizon.Blocks[ascending[a]].EffectivePrice < s.in.Horizon.Blocks[ascending[b]].EffectivePrice
	})

	estimatedChargePrice := s.estimateChargePrice(ascending)

	descending := append([]int(nil), gridPowered...)
	sort.SliceStable(descending, func(a, b int) bool {
		return s.in.Horizon.Blocks[descending[a]].EffectivePrice > s.in.Horizon.Blocks[descending[b]].EffectivePrice
	})

	type qualifying struct {
		idx  int
		net  float64
	}
	var qualified []qualifying
	for _, idx := range descending {
		price := s.in.Horizon.Blocks[idx].EffectivePrice
		if price-estimatedChargePrice < s.in.Params.MinSavingsThreshold {
			continue
		}
		if s.netConsumption[idx] <= 0 {
			continue
		}
		qualified = append(qualified, qualifying{idx: idx, net: s.netConsumption[idx]})
	}

	if s.in.Params.MaxDischargeBlocksPerDay > 0 && len(qualified) > s.in.Params.MaxDischargeBlocksPerDay {
		qualified = qualified[:s.in.Params.MaxDischargeBlocksPerDay]
	}

	demandKWH := 0.0
	switch s.in.Params.DemandEstimationMethod {
	case types.DemandEstimationBlockCount:
		// flat estimate: ignore the actual per-block consumption and
		// assume each qualifying block needs one full charge block's
		// worth of energy.
		demandKWH = float64(len(qualified)) * s.energyPerChargeBlock
	default: // consumption-weighted
		for _, q := range qualified {
			demandKWH += q.net
		}
	}

	s.demandKWH = demandKWH
	s.estimatedChargePrice = estimatedChargePrice

	log.Ctx(ctx).DebugContext(ctx, "demand estimated",
		slog.Float64("estimatedChargePrice", estimatedChargePrice),
		slog.Float64("demandKWH", demandKWH),
		slog.Float64("existingEnergyKWH", s.existingEnergyKWH),
		slog.Float64("energyPerChargeBlockKWH", s.energyPerChargeBlock),
	)
}

func (s *state) estimateChargePrice(ascending []int) float64 {
	switch s.in.Params.ChargePriceEstimationMethod {
	case types.ChargePriceEstimationFixed:
		return s.in.Params.FixedChargePrice
	case types.ChargePriceEstimationWeighted:
		return s.blendBootstrapWeighted(ascending, true)
	default: // bootstrap
		return s.blendBootstrapWeighted(ascending, false)
	}
}

// blendBootstrapWeighted averages the cheapest BootstrapBlockCount
// still-GridPowered blocks and mixes in BatteryAvgChargePrice weighted by
// existing battery energy (spec §4.3 Phase 3). When weighted is true, the
// cheapest-block sample is itself weighted with linearly decreasing
// weights (cheapest block counts most) instead of a flat average — the
// "weighted" charge_price_estimation_method of spec §6.
func (s *state) blendBootstrapWeighted(ascending []int, weighted bool) float64 {
	count := s.in.Params.BootstrapBlockCount
	if count > len(ascending) {
		count = len(ascending)
	}
	if count <= 0 {
		return s.in.BatteryAvgChargePrice
	}

	var bootstrapSum, bootstrapWeight float64
	for i := 0; i < count; i++ {
		price := s.in.Horizon.Blocks[ascending[i]].EffectivePrice
		w := 1.0
		if weighted {
			w = float64(count - i) // cheapest (i=0) gets the largest weight
		}
		bootstrapSum += price * w
		bootstrapWeight += w
	}
	bootstrapAvg := bootstrapSum / bootstrapWeight
	bootstrapEnergy := float64(count) * s.energyPerChargeBlock

	denom := bootstrapEnergy + s.existingEnergyKWH
	if denom <= 0 {
		return bootstrapAvg
	}
	return (bootstrapAvg*bootstrapEnergy + s.in.BatteryAvgChargePrice*s.existingEnergyKWH) / denom
}

func (s *state) gridPoweredIndices() []int {
	var idx []int
	for i, a := range s.actions {
		if a.Kind == types.ActionGridPowered {
			idx = append(idx, i)
		}
	}
	return idx
}

// Phase 4 — charge-block count. The ChargeReductionFactor is applied to
// the energy target before the MaxChargeBlocksPerDay cap, not after:
// capping block count first and then shrinking energy would let the cap
// double up with the reduction once the reduced energy is reconverted to
// a block count.
func phase4ChargeBlockCount(ctx context.Context, s *state) {
	energyToCharge := math.Max(s.demandKWH-s.existingEnergyKWH, 0)
	headroom := math.Max(s.targetUsableEnergyKWH-s.existingEnergyKWH, 0)
	if energyToCharge > headroom {
		energyToCharge = headroom
	}

	reduction := s.in.Params.ChargeReductionFactor
	if reduction <= 0 {
		reduction = 1
	}
	adjustedEnergy := energyToCharge * reduction

	blocksNeeded := 0
	if s.energyPerChargeBlock > 0 {
		blocksNeeded = int(math.Ceil(adjustedEnergy / s.energyPerChargeBlock))
	}
	if s.in.Params.MaxChargeBlocksPerDay > 0 && blocksNeeded > s.in.Params.MaxChargeBlocksPerDay {
		blocksNeeded = s.in.Params.MaxChargeBlocksPerDay
	}
	s.chargeBlocksNeeded = blocksNeeded

	log.Ctx(ctx).DebugContext(ctx, "charge block count computed",
		slog.Float64("energyToChargeKWH", energyToCharge),
		slog.Float64("adjustedEnergyKWH", adjustedEnergy),
		slog.Int("chargeBlocksNeeded", blocksNeeded),
	)
}

// Phase 5 — charge-block selection.
func phase5ChargeBlockSelection(s *state) {
	for i, b := range s.in.Horizon.Blocks {
		if s.actions[i].Kind != types.ActionGridPowered {
			continue
		}
		if b.EffectivePrice < s.in.Params.OpportunisticChargeThreshold {
			s.actions[i] = types.Charge(types.ChargeOpportunistic)
		}
	}

	total := s.countCharge()
	if total >= s.chargeBlocksNeeded {
		return
	}

	remaining := s.gridPoweredIndices()
	sort.SliceStable(remaining, func(a, b int) bool {
		return s.in.Horizon.Blocks[remaining[a]].EffectivePrice < s.in.Horizon.Blocks[remaining[b]].EffectivePrice
	})
	for _, idx := range remaining {
		if total >= s.chargeBlocksNeeded {
			break
		}
		s.actions[idx] = types.Charge(types.ChargeArbitrage)
		total++
	}
}

func (s *state) countCharge() int {
	n := 0
	for _, a := range s.actions {
		if a.IsCharge() {
			n++
		}
	}
	return n
}

// Phase 6 — budget and blended charge price. Only ChargeArbitrage blocks
// feed the price blend: opportunistic and negative-price charges are
// free/bonus energy the allocator didn't plan around price, so they don't
// distort the reference price later phases compare discharge savings
// against.
func phase6Budget(s *state) {
	totalChargeEnergy := float64(s.countCharge()) * s.energyPerChargeBlock
	s.budgetKWH = math.Min(s.existingEnergyKWH+totalChargeEnergy*efficiencyOrOne(s.in.Params.BatteryRoundTripEfficiency), s.targetUsableEnergyKWH)

	numerator := s.existingEnergyKWH * s.in.BatteryAvgChargePrice
	denominator := s.existingEnergyKWH
	for i, b := range s.in.Horizon.Blocks {
		if s.actions[i].Kind == types.ActionCharge && s.actions[i].ChargeReason == types.ChargeArbitrage {
			numerator += b.EffectivePrice * s.energyPerChargeBlock
			denominator += s.energyPerChargeBlock
		}
	}
	if denominator <= 0 {
		s.blendedAvgChargePrice = s.in.BatteryAvgChargePrice
		return
	}
	s.blendedAvgChargePrice = numerator / denominator
}

func efficiencyOrOne(e float64) float64 {
	if e <= 0 {
		return 1
	}
	return e
}

// Phase 7 — rank expensive blocks: still-GridPowered blocks in descending
// price order, ties broken by index to keep the ranking deterministic.
func phase7RankExpensiveBlocks(s *state) []int {
	idx := s.gridPoweredIndices()
	sort.SliceStable(idx, func(a, b int) bool {
		return s.in.Horizon.Blocks[idx[a]].EffectivePrice > s.in.Horizon.Blocks[idx[b]].EffectivePrice
	})
	return idx
}

// Phase 8 — allocate battery to expensive blocks.
func phase8AllocateBattery(s *state, sortedDescending []int) {
	remainingBudget := s.budgetKWH
	count := 0
	for _, idx := range sortedDescending {
		if s.in.Params.MaxDischargeBlocksPerDay > 0 && count >= s.in.Params.MaxDischargeBlocksPerDay {
			break
		}
		savings := s.in.Horizon.Blocks[idx].EffectivePrice - s.blendedAvgChargePrice
		if savings < s.in.Params.MinSavingsThreshold {
			continue
		}
		net := s.netConsumption[idx]
		if net <= 0 {
			continue
		}
		if remainingBudget >= net {
			s.actions[idx] = types.ActionTag{Kind: types.ActionBatteryPowered}
			remainingBudget -= net
			count++
		}
	}
}

// Phase 9 — export upgrades.
func phase9ExportUpgrades(s *state) {
	if !s.in.Params.ExportEnabled {
		return
	}
	for i, b := range s.in.Horizon.Blocks {
		if s.actions[i].Kind != types.ActionBatteryPowered {
			continue
		}
		if b.EffectivePrice-s.blendedAvgChargePrice >= s.in.Params.MinExportSpread {
			s.actions[i] = types.ActionTag{Kind: types.ActionExport}
		}
	}
}

// Phase 10 — solar excess: still-GridPowered daylight blocks with no net
// grid/battery demand (solar already covers consumption).
func phase10SolarExcess(s *state) {
	for i, b := range s.in.Horizon.Blocks {
		if s.actions[i].Kind != types.ActionGridPowered {
			continue
		}
		h := b.BlockStart.Hour()
		if !inDaylight(h, s.in.Params.DaylightStartHour, s.in.Params.DaylightEndHour) {
			continue
		}
		if s.netConsumption[i] <= 0 {
			s.actions[i] = types.ActionTag{Kind: types.ActionSolarExcess}
		}
	}
}

// Phase 11 — post-processing: consecutive charge groups, then short-gap
// removal, then gap bridging, then hold charge, in that order since each
// narrows what the
// next considers "the charge schedule".
func phase11PostProcess(s *state) {
	if s.in.Params.ConsecutiveChargeGroupsEnabled {
		enforceConsecutiveChargeGroups(s)
	}
	if s.in.Params.ShortGapRemovalEnabled {
		removeShortGaps(s)
	}
	if s.in.Params.GapBridgingEnabled {
		bridgeChargeGaps(s)
	}
	if s.in.Params.HoldChargeEnabled {
		applyHoldCharge(s)
	}
}

// removeShortGaps absorbs any still-GridPowered gap shorter than
// ShortGapMinSizeBlocks between two Charge* groups, with no price guard —
// a coarser, unconditional sibling of bridgeChargeGaps for the single- or
// two-block glitches a price-aware bridge would otherwise leave behind.
func removeShortGaps(s *state) {
	minSize := s.in.Params.ShortGapMinSizeBlocks
	if minSize <= 0 {
		return
	}
	runs := chargeRuns(s.actions)
	for k := 0; k < len(runs)-1; k++ {
		gapStart := runs[k].end + 1
		gapEnd := runs[k+1].start - 1
		gapLen := gapEnd - gapStart + 1
		if gapLen <= 0 || gapLen >= minSize {
			continue
		}
		allGridPowered := true
		for i := gapStart; i <= gapEnd; i++ {
			if s.actions[i].Kind != types.ActionGridPowered {
				allGridPowered = false
				break
			}
		}
		if allGridPowered {
			s.fillGap(gapStart, gapEnd)
		}
	}
}

// enforceConsecutiveChargeGroups promotes the cheaper in-range neighbor of
// every isolated Charge* block to Charge{Arbitrage} so no charge block
// stands alone (spec §4.3 Phase 11, invariant: charge blocks cluster).
func enforceConsecutiveChargeGroups(s *state) {
	n := len(s.actions)
	var isolated []int
	for i := 0; i < n; i++ {
		if !s.actions[i].IsCharge() {
			continue
		}
		leftCharge := i > 0 && s.actions[i-1].IsCharge()
		rightCharge := i < n-1 && s.actions[i+1].IsCharge()
		if !leftCharge && !rightCharge {
			isolated = append(isolated, i)
		}
	}

	for _, i := range isolated {
		var candidates []int
		if i > 0 {
			candidates = append(candidates, i-1)
		}
		if i < n-1 {
			candidates = append(candidates, i+1)
		}
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if s.in.Horizon.Blocks[c].EffectivePrice < s.in.Horizon.Blocks[best].EffectivePrice {
				best = c
			}
		}
		s.actions[best] = types.Charge(types.ChargeArbitrage)
	}
}

type chargeRun struct {
	start, end int // inclusive
}

func chargeRuns(actions []types.ActionTag) []chargeRun {
	var runs []chargeRun
	i := 0
	for i < len(actions) {
		if !actions[i].IsCharge() {
			i++
			continue
		}
		start := i
		for i < len(actions) && actions[i].IsCharge() {
			i++
		}
		runs = append(runs, chargeRun{start: start, end: i - 1})
	}
	return runs
}

// bridgeChargeGaps fills short non-charge gaps between charge groups
// (and a short leading prefix before the first group) with
// Charge{Arbitrage}, provided every intervening block is still
// GridPowered and priced within tolerance of the blended charge price.
func bridgeChargeGaps(s *state) {
	maxGap := s.in.Params.GapBridgingMaxGapBlocks
	tolerance := s.in.Params.GapBridgingPriceTolerance
	ceiling := s.blendedAvgChargePrice + tolerance

	runs := chargeRuns(s.actions)
	if len(runs) == 0 {
		return
	}

	if runs[0].start > 0 && runs[0].start < maxGap {
		if s.gapFillable(0, runs[0].start-1, ceiling) {
			s.fillGap(0, runs[0].start-1)
		}
	}

	for k := 0; k < len(runs)-1; k++ {
		gapStart := runs[k].end + 1
		gapEnd := runs[k+1].start - 1
		gapLen := gapEnd - gapStart + 1
		if gapLen <= 0 || gapLen >= maxGap {
			continue
		}
		if s.gapFillable(gapStart, gapEnd, ceiling) {
			s.fillGap(gapStart, gapEnd)
		}
	}
}

func (s *state) gapFillable(start, end int, ceiling float64) bool {
	for i := start; i <= end; i++ {
		if s.actions[i].Kind != types.ActionGridPowered {
			return false
		}
		if s.in.Horizon.Blocks[i].EffectivePrice > ceiling {
			return false
		}
	}
	return true
}

func (s *state) fillGap(start, end int) {
	for i := start; i <= end; i++ {
		s.actions[i] = types.Charge(types.ChargeArbitrage)
	}
}

// applyHoldCharge tags still-GridPowered blocks between the last planned
// charge and the first planned discharge as HoldCharge, so the battery
// isn't left to drift on self-use in between. The strict tariff variant
// stops early at the first big jump in the price's non-energy (fee)
// component, since that usually marks a tariff-period boundary worth
// re-evaluating rather than blindly holding through.
func applyHoldCharge(s *state) {
	n := len(s.actions)
	lastCharge := -1
	for i := n - 1; i >= 0; i-- {
		if s.actions[i].IsCharge() {
			lastCharge = i
			break
		}
	}
	if lastCharge == -1 {
		return
	}

	firstDischarge := n
	for i := lastCharge + 1; i < n; i++ {
		k := s.actions[i].Kind
		if k == types.ActionBatteryPowered || k == types.ActionExport {
			firstDischarge = i
			break
		}
	}

	prevFee := s.feeComponent(lastCharge)
	for i := lastCharge + 1; i < firstDischarge; i++ {
		if s.in.Params.StrictTariffHoldVariant {
			fee := s.feeComponent(i)
			if math.Abs(fee-prevFee) > 0.5 {
				break
			}
			prevFee = fee
		}
		if s.actions[i].Kind == types.ActionGridPowered {
			s.actions[i] = types.ActionTag{Kind: types.ActionHoldCharge}
		}
	}
}

func (s *state) feeComponent(i int) float64 {
	b := s.in.Horizon.Blocks[i]
	return b.EffectivePrice - b.RawPrice
}
