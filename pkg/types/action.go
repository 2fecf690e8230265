package types

// ActionKind is the closed set of planner actions a block can be tagged
// with. It is a sum type represented as a small int enum with associated
// data (ChargeReason) rather than a string, per the design notes: never
// string-compare a schedule entry.
type ActionKind int

const (
	// ActionGridPowered is the initial state every block starts in: the
	// battery is idle and the grid serves the load. Planner phases
	// transition only blocks still in this state, except the export
	// upgrades (BatteryPowered to Export), the Winter planner's discharge
	// cap (back to GridPowered), and the consecutive-charge-group step of
	// post-processing.
	ActionGridPowered ActionKind = iota
	ActionCharge
	ActionBatteryPowered
	ActionExport
	ActionHoldCharge
	ActionSolarExcess
)

func (k ActionKind) String() string {
	switch k {
	case ActionGridPowered:
		return "grid_powered"
	case ActionCharge:
		return "charge"
	case ActionBatteryPowered:
		return "battery_powered"
	case ActionExport:
		return "export"
	case ActionHoldCharge:
		return "hold_charge"
	case ActionSolarExcess:
		return "solar_excess"
	default:
		return "unknown"
	}
}

// ChargeReason is the associated data for ActionCharge: which planning
// phase decided the block should charge. Meaningless for any other
// ActionKind.
type ChargeReason int

const (
	ChargeReasonNone ChargeReason = iota
	ChargeOpportunistic
	ChargeArbitrage
	ChargeNegativePrice
	ChargeMorningPeakCoverage
)

func (r ChargeReason) String() string {
	switch r {
	case ChargeOpportunistic:
		return "opportunistic"
	case ChargeArbitrage:
		return "arbitrage"
	case ChargeNegativePrice:
		return "negative_price"
	case ChargeMorningPeakCoverage:
		return "morning_peak_coverage"
	default:
		return "none"
	}
}

// ActionTag is the tagged action assigned to one horizon block by the
// Day Planner.
type ActionTag struct {
	Kind         ActionKind
	ChargeReason ChargeReason // valid only when Kind == ActionCharge
}

// IsCharge reports whether the tag is any Charge{...} variant.
func (t ActionTag) IsCharge() bool {
	return t.Kind == ActionCharge
}

// String renders a decision-uid-friendly path segment, e.g. "charge:arbitrage".
func (t ActionTag) String() string {
	if t.Kind == ActionCharge {
		return t.Kind.String() + ":" + t.ChargeReason.String()
	}
	return t.Kind.String()
}

// GridPowered is the zero-value action tag every schedule starts filled with.
var GridPowered = ActionTag{Kind: ActionGridPowered}

// Charge builds an ActionCharge tag with the given reason.
func Charge(reason ChargeReason) ActionTag {
	return ActionTag{Kind: ActionCharge, ChargeReason: reason}
}

// InverterMode is the coarser, vendor-facing set of operating modes the
// Block Evaluator emits. This is the contract the (out-of-scope) inverter
// control adapter consumes.
type InverterMode int

const (
	ForceCharge InverterMode = iota
	ForceDischarge
	SelfUse
	BackUpMode // a.k.a. NoChargeNoDischarge
)

func (m InverterMode) String() string {
	switch m {
	case ForceCharge:
		return "force_charge"
	case ForceDischarge:
		return "force_discharge"
	case SelfUse:
		return "self_use"
	case BackUpMode:
		return "back_up_mode"
	default:
		return "unknown"
	}
}

// DefaultOperatingMode is the control configuration's fallback mode for
// degenerate inputs (spec §3, §7).
type DefaultOperatingMode int

const (
	DefaultModeSelfUse DefaultOperatingMode = iota
	DefaultModeBackup
)

func (m DefaultOperatingMode) InverterMode() InverterMode {
	if m == DefaultModeBackup {
		return BackUpMode
	}
	return SelfUse
}
