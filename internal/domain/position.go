package domain

import (
	"fmt"
	"time"
)

// Side of a directional position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the closing side for an open position.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// PositionKey identifies one open position slot. At most one position
// is open per key at any time.
type PositionKey struct {
	Connector string
	Symbol    string
}

func (k PositionKey) String() string {
	return fmt.Sprintf("%s/%s", k.Connector, k.Symbol)
}

// Position state labels. TP2 fill is the position's natural end, so there
// is no separate post-TP2 running state.
const (
	StateOpen       = "OPEN"
	StatePartialTP1 = "PARTIAL_TP1"
	StateClosed     = "CLOSED"
)

// Position is the live state of one open trade.
// Mutated only by the tick loop (single writer).
type Position struct {
	Key  PositionKey
	Side Side

	EntryPrice  float64
	OriginalQty float64
	Qty         float64 // remaining quantity, never negative

	Stop float64
	TP1  float64
	TP2  float64

	// RiskDistance is |entry - initial stop|, the R unit for this trade.
	RiskDistance float64

	Bars        int       // completed bars observed since entry
	LastBarTime time.Time // most recent bar time seen for this position

	TP1Done   bool
	TP2Done   bool
	MovedToBE bool

	RealizedPnL float64

	TradeID      string // ledger trade id, empty when ledger is disabled
	EntryOrderID string
	OpenedAt     time.Time
}

// State derives the lifecycle state label from the flags and quantity.
func (p *Position) State() string {
	switch {
	case p.Qty <= 0:
		return StateClosed
	case p.TP1Done:
		return StatePartialTP1
	default:
		return StateOpen
	}
}

// Notional returns the position value at the given price.
func (p *Position) Notional(price float64) float64 {
	return p.Qty * price
}

// UnrealizedR returns current profit measured in R units.
func (p *Position) UnrealizedR(price float64) float64 {
	if p.RiskDistance <= 0 {
		return 0
	}
	if p.Side == SideLong {
		return (price - p.EntryPrice) / p.RiskDistance
	}
	return (p.EntryPrice - price) / p.RiskDistance
}

// Exit reason codes recorded on fills and trade closes.
const (
	ExitReasonTP1       = "TP1"
	ExitReasonTP2       = "TP2"
	ExitReasonStopLoss  = "SL"
	ExitReasonTimeExit  = "TIME"
	ExitReasonDustClose = "DUST"
)
