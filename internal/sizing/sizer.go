// Package sizing converts a risk budget into an order quantity under
// venue constraints. Size is a pure function: identical inputs always
// produce identical output.
package sizing

import "math"

// VenueRules are the tradability constraints of one instrument.
type VenueRules struct {
	MinQty      float64 // minimum order quantity, 0 when unconstrained
	MinNotional float64 // minimum order value (price*qty), 0 when unconstrained
	QtyStep     float64 // quantity increment, 0 when unconstrained
}

// Input collects everything Size needs. StopDistance must be positive;
// callers filter degenerate signals before sizing.
type Input struct {
	Equity          float64
	RiskFraction    float64
	StopDistance    float64
	Price           float64
	ExposureCapFrac float64 // hard per-position notional cap fraction
	RemainingBudget float64 // portfolio budget left for this tick
	Rules           VenueRules
}

// Size returns the order quantity for the given risk budget, or 0 when no
// trade fits. A zero result is a valid "no trade" outcome, not an error.
//
// Quantity is derived from the risk budget, capped by the per-position
// notional limit and by the remaining portfolio budget, then rounded down
// to the venue step. Venue minimums may round the quantity back up, but
// never past the remaining budget.
func Size(in Input) float64 {
	if in.StopDistance <= 0 || in.Price <= 0 || in.Equity <= 0 {
		return 0
	}

	qty := (in.Equity * in.RiskFraction) / in.StopDistance

	if cap := (in.Equity * in.ExposureCapFrac) / in.Price; qty > cap {
		qty = cap
	}
	if cap := in.RemainingBudget / in.Price; qty > cap {
		qty = cap
	}
	if qty < 0 {
		qty = 0
	}

	qty = roundStep(qty, in.Rules.QtyStep)

	if in.Rules.MinQty > 0 && qty < in.Rules.MinQty {
		lifted := roundStepUp(in.Rules.MinQty, in.Rules.QtyStep)
		if lifted*in.Price > in.RemainingBudget {
			return 0
		}
		qty = lifted
	}

	if in.Rules.MinNotional > 0 && qty*in.Price < in.Rules.MinNotional {
		needed := roundStepUp(in.Rules.MinNotional/in.Price, in.Rules.QtyStep)
		if needed*in.Price > in.RemainingBudget {
			return 0
		}
		if needed > qty {
			qty = needed
		}
	}

	if qty <= 0 {
		return 0
	}
	return qty
}

// roundStep rounds quantity down to the venue step.
func roundStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step) * step
}

// roundStepUp rounds quantity up to the venue step.
func roundStepUp(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Ceil(qty/step) * step
}
