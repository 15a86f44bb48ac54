package engine

import "adaptive-trend-bot/internal/domain"

// Budget is the portfolio notional budget left for new entries in one
// tick. Each accepted entry decrements it immediately so later symbols
// in the same tick see the reduced budget.
type Budget struct {
	remaining float64
}

// NewBudget computes the budget under the exposure cap, valuing every
// open position at the freshest price priceOf can produce for it.
func NewBudget(equity, maxExposureFrac float64, positions []*domain.Position, priceOf func(*domain.Position) float64) *Budget {
	used := 0.0
	for _, p := range positions {
		used += p.Notional(priceOf(p))
	}
	remaining := equity*maxExposureFrac - used
	if remaining < 0 {
		remaining = 0
	}
	return &Budget{remaining: remaining}
}

// Remaining returns the notional budget still available.
func (b *Budget) Remaining() float64 {
	return b.remaining
}

// Reserve consumes notional from the budget, clamping at zero.
func (b *Budget) Reserve(notional float64) {
	b.remaining -= notional
	if b.remaining < 0 {
		b.remaining = 0
	}
}
