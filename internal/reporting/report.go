package reporting

import (
	"time"

	"adaptive-trend-bot/internal/domain"
)

// Report is the performance summary built from finalized trades.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	// Totals
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	AvgR         float64
	TotalPnL     float64
	EquityStart  float64
	EquityEnd    float64
	EquityChange float64 // fractional, end vs start

	// Breakdowns (sorted by symbol / reason)
	SymbolRows []BreakdownRow
	ReasonRows []BreakdownRow

	// Trades in close order, for the CSV export.
	Trades []*domain.TradeOutcome
}

// BreakdownRow aggregates trades sharing one symbol or exit reason.
type BreakdownRow struct {
	Label    string
	Trades   int
	WinRate  float64
	AvgR     float64
	TotalPnL float64
}
