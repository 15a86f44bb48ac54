package domain

import "time"

// TradeOpen is the ledger record created when an entry order is confirmed.
type TradeOpen struct {
	TradeID       string
	Connector     string
	Symbol        string
	Side          Side
	EntryPrice    float64
	Qty           float64
	RiskUSD       float64 // risk distance * quantity at entry
	EquityAtEntry float64
	EntryOrderID  string
	OpenedAt      time.Time
}

// Fill is one completed close, partial or full, appended for audit.
type Fill struct {
	TradeID     string
	Reason      string // exit reason code
	Price       float64
	Qty         float64
	RealizedPnL float64
	Equity      float64
	FilledAt    time.Time
}

// TradeClose finalizes a ledger trade.
type TradeClose struct {
	ExitPrice    float64
	RealizedPnL  float64 // total over the trade's lifetime
	Reason       string  // reason of the terminating close
	EquityAtExit float64
	ClosedAt     time.Time
}

// TradeOutcome is an immutable sample of one closed trade, the Brain's
// only input. Never mutated after the trade is finalized.
type TradeOutcome struct {
	TradeID       string
	Connector     string
	Symbol        string
	Side          Side
	EntryPrice    float64
	ExitPrice     float64
	Qty           float64
	RealizedPnL   float64
	RiskUSD       float64
	EquityAtEntry float64
	EquityAtExit  float64
	Reason        string
	OpenedAt      time.Time
	ClosedAt      time.Time
}

// RMultiple returns realized PnL divided by the currency risked at entry,
// and false when the risk amount is degenerate.
func (t *TradeOutcome) RMultiple() (float64, bool) {
	if t.RiskUSD <= 0 {
		return 0, false
	}
	return t.RealizedPnL / t.RiskUSD, true
}

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// BlockedSymbol marks a symbol ineligible for new entries.
// A nil Until means blocked until explicitly cleared.
type BlockedSymbol struct {
	Symbol    string
	Until     *time.Time
	Reason    string
	CreatedAt time.Time
}

// ActiveAt reports whether the block is still in force at the given time.
func (b *BlockedSymbol) ActiveAt(now time.Time) bool {
	return b.Until == nil || b.Until.After(now)
}

// BrainSnapshot is an audit record of one Brain cycle.
type BrainSnapshot struct {
	Time           time.Time
	Mode           Mode
	ShortWinRate   float64
	ShortAvgR      float64
	ShortEquityChg float64
	BaseWinRate    float64
	BaseAvgR       float64
	SampleCount    int
	BlockedSymbols []string
	RiskPerTrade   float64
	MaxExposure    float64
}
