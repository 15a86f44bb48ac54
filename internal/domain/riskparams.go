package domain

// Mode is the Brain's current risk posture.
type Mode string

const (
	ModeDefensive  Mode = "DEFENSIVE"
	ModeNormal     Mode = "NORMAL"
	ModeAggressive Mode = "AGGRESSIVE"
)

// RiskParameters is the full set of tunables consumed by the sizer, the
// exposure controller and the position manager. The Brain replaces the
// whole value on each cycle; it is never patched field by field.
type RiskParameters struct {
	Mode Mode

	// RiskPerTrade is the fraction of equity put at risk on one entry.
	RiskPerTrade float64

	// MaxPortfolioExposure caps total open notional as a fraction of equity.
	MaxPortfolioExposure float64

	// MaxNotionalPctHard caps a single position's notional as a fraction
	// of equity regardless of mode.
	MaxNotionalPctHard float64

	// StopATRMult is the initial stop distance in ATR units.
	StopATRMult float64

	// Take-profit targets in R multiples and the fraction of quantity
	// closed at each. TP2ClosePct applies to the quantity remaining
	// after TP1.
	TP1RMult    float64
	TP2RMult    float64
	TP1ClosePct float64
	TP2ClosePct float64

	// BreakEvenAfterR moves the stop to entry once unrealized profit
	// reaches this many R.
	BreakEvenAfterR float64

	// TrailATRMult is the trailing stop distance in ATR units.
	TrailATRMult float64

	// MaxBarsInTrade forces a close after this many bars unless TP2
	// has completed.
	MaxBarsInTrade int
}
