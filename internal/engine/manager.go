// Package engine drives live position management: entries sized against
// a portfolio budget, a per-tick exit state machine, and the single
// threaded control loop that ties them together.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/exchange"
	"adaptive-trend-bot/internal/idhash"
	"adaptive-trend-bot/internal/observability"
	"adaptive-trend-bot/internal/sizing"
	"adaptive-trend-bot/internal/storage"
)

// Manager owns all open positions and applies the per-tick exit state
// machine. It is mutated only by the tick loop (single writer); local
// position state is the source of truth for control, the ledger is
// best-effort bookkeeping.
type Manager struct {
	connector exchange.Connector
	trades    storage.TradeStore // nil disables the ledger
	logger    *log.Logger
	now       func() time.Time

	positions map[domain.PositionKey]*domain.Position
}

// NewManager creates a Manager for one connector. trades may be nil.
func NewManager(connector exchange.Connector, trades storage.TradeStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}
	return &Manager{
		connector: connector,
		trades:    trades,
		logger:    logger,
		now:       time.Now,
		positions: make(map[domain.PositionKey]*domain.Position),
	}
}

// Has reports whether a position is open for the key.
func (m *Manager) Has(key domain.PositionKey) bool {
	_, ok := m.positions[key]
	return ok
}

// Position returns the open position for the key, if any.
func (m *Manager) Position(key domain.PositionKey) (*domain.Position, bool) {
	p, ok := m.positions[key]
	return p, ok
}

// Positions returns all currently open positions.
func (m *Manager) Positions() []*domain.Position {
	out := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// Open places the entry order and registers the position. Stop and
// targets are derived from the snapshot's ATR: stop at StopATRMult ATRs
// from entry, TP1 and TP2 at their R multiples of that distance.
func (m *Manager) Open(ctx context.Context, snap domain.IndicatorSnapshot, side domain.Side, qty float64, params domain.RiskParameters, equity float64) (*domain.Position, error) {
	if m.Has(snap.Key) {
		return nil, fmt.Errorf("position already open for %s", snap.Key)
	}
	if !snap.Tradable() || qty <= 0 {
		return nil, fmt.Errorf("untradable entry for %s", snap.Key)
	}

	orderID, err := m.connector.PlaceOrder(ctx, snap.Key.Symbol, side, qty, false)
	if err != nil {
		observability.RecordOrder("failed")
		return nil, fmt.Errorf("entry order for %s: %w", snap.Key, err)
	}
	observability.RecordOrder("filled")

	entry := snap.Close
	riskDist := params.StopATRMult * snap.ATR

	pos := &domain.Position{
		Key:          snap.Key,
		Side:         side,
		EntryPrice:   entry,
		OriginalQty:  qty,
		Qty:          qty,
		RiskDistance: riskDist,
		LastBarTime:  snap.BarTime,
		EntryOrderID: orderID,
		OpenedAt:     m.now(),
	}
	if side == domain.SideLong {
		pos.Stop = entry - riskDist
		pos.TP1 = entry + params.TP1RMult*riskDist
		pos.TP2 = entry + params.TP2RMult*riskDist
	} else {
		pos.Stop = entry + riskDist
		pos.TP1 = entry - params.TP1RMult*riskDist
		pos.TP2 = entry - params.TP2RMult*riskDist
	}
	pos.TradeID = idhash.ComputeTradeID(m.connector.Name(), snap.Key.Symbol, string(side), pos.OpenedAt.UnixMilli())

	m.positions[snap.Key] = pos
	observability.RecordEntry(string(side))
	m.logger.Printf("opened %s %s qty=%g entry=%g stop=%g tp1=%g tp2=%g",
		side, snap.Key, qty, entry, pos.Stop, pos.TP1, pos.TP2)

	if m.trades != nil {
		err := m.trades.RecordOpen(ctx, &domain.TradeOpen{
			TradeID:       pos.TradeID,
			Connector:     snap.Key.Connector,
			Symbol:        snap.Key.Symbol,
			Side:          side,
			EntryPrice:    entry,
			Qty:           qty,
			RiskUSD:       riskDist * qty,
			EquityAtEntry: equity,
			EntryOrderID:  orderID,
			OpenedAt:      pos.OpenedAt,
		})
		if err != nil {
			m.logger.Printf("ledger open for %s failed: %v", pos.TradeID, err)
		}
	}
	return pos, nil
}

// Update applies one tick to the position for snap.Key and returns the
// PnL realized during the tick.
//
// Update order matters: later checks see the stop level possibly moved
// earlier in the same tick.
//  1. trailing stop, active once TP1 has banked profit, tighten only
//  2. break-even move once unrealized profit reaches the trigger
//  3. TP1 partial close against the original quantity
//  4. TP2 partial close against the quantity remaining after TP1
//  5. stop-loss on the possibly moved stop
//  6. time exit after the bar limit unless TP2 completed
//
// A failed exit order leaves the position untouched; the same exit is
// retried on the next qualifying tick.
func (m *Manager) Update(ctx context.Context, snap domain.IndicatorSnapshot, params domain.RiskParameters, equity float64) float64 {
	pos, ok := m.positions[snap.Key]
	if !ok {
		return 0
	}
	price := snap.Close
	realized := 0.0

	if snap.BarTime.After(pos.LastBarTime) {
		pos.Bars++
		pos.LastBarTime = snap.BarTime
	}

	if pos.TP1Done && snap.ATR > 0 && params.TrailATRMult > 0 {
		if pos.Side == domain.SideLong {
			if c := price - params.TrailATRMult*snap.ATR; c > pos.Stop {
				pos.Stop = c
			}
		} else {
			if c := price + params.TrailATRMult*snap.ATR; c < pos.Stop {
				pos.Stop = c
			}
		}
	}

	if !pos.MovedToBE && pos.UnrealizedR(price) >= params.BreakEvenAfterR {
		if pos.Side == domain.SideLong && pos.EntryPrice > pos.Stop {
			pos.Stop = pos.EntryPrice
		}
		if pos.Side == domain.SideShort && pos.EntryPrice < pos.Stop {
			pos.Stop = pos.EntryPrice
		}
		pos.MovedToBE = true
		m.logger.Printf("%s stop moved to break-even at %g", pos.Key, pos.Stop)
	}

	if !pos.TP1Done && targetReached(pos.Side, price, pos.TP1) {
		pnl, filled, done := m.closePartial(ctx, pos, params.TP1ClosePct*pos.OriginalQty, price, domain.ExitReasonTP1, equity+realized)
		realized += pnl
		if done {
			return realized
		}
		if filled {
			pos.TP1Done = true
		}
	}

	if pos.TP1Done && !pos.TP2Done && targetReached(pos.Side, price, pos.TP2) {
		pnl, filled, done := m.closePartial(ctx, pos, params.TP2ClosePct*pos.Qty, price, domain.ExitReasonTP2, equity+realized)
		realized += pnl
		if done {
			return realized
		}
		if filled {
			pos.TP2Done = true
		}
	}

	if stopHit(pos.Side, price, pos.Stop) {
		realized += m.closeAll(ctx, pos, pos.Stop, domain.ExitReasonStopLoss, equity+realized)
		return realized
	}

	if pos.Bars >= params.MaxBarsInTrade && !pos.TP2Done {
		realized += m.closeAll(ctx, pos, price, domain.ExitReasonTimeExit, equity+realized)
	}
	return realized
}

// targetReached reports whether price has reached a take-profit level.
func targetReached(side domain.Side, price, target float64) bool {
	if side == domain.SideLong {
		return price >= target
	}
	return price <= target
}

// stopHit reports whether price has crossed the stop.
func stopHit(side domain.Side, price, stop float64) bool {
	if side == domain.SideLong {
		return price <= stop
	}
	return price >= stop
}

// profit returns the directional PnL for closing qty at exit.
func profit(side domain.Side, entry, exit, qty float64) float64 {
	if side == domain.SideLong {
		return (exit - entry) * qty
	}
	return (entry - exit) * qty
}

// closePartial closes want of the position at price. The actual order
// quantity is capped by the live venue quantity when known and rounded
// down to the venue step. When the venue-side position is already dust,
// or the remainder after the fill would be, the whole position is
// finalized instead. Returns the realized PnL, whether the partial
// actually filled, and whether the position terminated.
func (m *Manager) closePartial(ctx context.Context, pos *domain.Position, want, price float64, reason string, equity float64) (pnl float64, filled, terminated bool) {
	rules := m.venueRules(ctx, pos.Key.Symbol)

	if want > pos.Qty {
		want = pos.Qty
	}
	live, err := m.connector.LiveQuantity(ctx, pos.Key.Symbol)
	if err != nil {
		m.logger.Printf("live quantity for %s unknown: %v", pos.Key, err)
	} else {
		if isDust(live, price, rules) {
			return m.dustClose(ctx, pos, price, equity), false, true
		}
		if want > live {
			want = live
		}
	}

	want = roundDown(want, rules.QtyStep)
	if want <= 0 {
		m.logger.Printf("%s %s close quantity rounds to zero, skipping", pos.Key, reason)
		return 0, false, false
	}

	if _, err := m.connector.PlaceOrder(ctx, pos.Key.Symbol, pos.Side.Opposite(), want, true); err != nil {
		observability.RecordOrder("failed")
		m.logger.Printf("%s exit order for %s failed: %v", reason, pos.Key, err)
		return 0, false, false
	}
	observability.RecordOrder("filled")

	pnl = profit(pos.Side, pos.EntryPrice, price, want)
	pos.Qty -= want
	pos.RealizedPnL += pnl
	m.recordFill(ctx, pos, reason, price, want, pnl, equity+pnl)
	m.logger.Printf("%s %s closed %g @ %g pnl=%+.2f remaining=%g", pos.Key, reason, want, price, pnl, pos.Qty)

	if pos.Qty <= 0 {
		m.finalize(ctx, pos, price, reason, equity+pnl)
		return pnl, true, true
	}
	if isDust(pos.Qty, price, rules) {
		return pnl + m.dustClose(ctx, pos, price, equity+pnl), true, true
	}
	return pnl, true, false
}

// closeAll closes the full remaining quantity at exitPrice and
// terminates the position. Returns the realized PnL, zero if the exit
// order failed and the position is left untouched.
func (m *Manager) closeAll(ctx context.Context, pos *domain.Position, exitPrice float64, reason string, equity float64) float64 {
	rules := m.venueRules(ctx, pos.Key.Symbol)

	orderQty := pos.Qty
	live, err := m.connector.LiveQuantity(ctx, pos.Key.Symbol)
	if err != nil {
		m.logger.Printf("live quantity for %s unknown: %v", pos.Key, err)
	} else {
		if isDust(live, exitPrice, rules) {
			return m.dustClose(ctx, pos, exitPrice, equity)
		}
		if orderQty > live {
			orderQty = live
		}
	}

	orderQty = roundDown(orderQty, rules.QtyStep)
	if orderQty <= 0 {
		return m.dustClose(ctx, pos, exitPrice, equity)
	}

	if _, err := m.connector.PlaceOrder(ctx, pos.Key.Symbol, pos.Side.Opposite(), orderQty, true); err != nil {
		observability.RecordOrder("failed")
		m.logger.Printf("%s exit order for %s failed: %v", reason, pos.Key, err)
		return 0
	}
	observability.RecordOrder("filled")

	pnl := profit(pos.Side, pos.EntryPrice, exitPrice, pos.Qty)
	closed := pos.Qty
	pos.Qty = 0
	pos.RealizedPnL += pnl
	m.recordFill(ctx, pos, reason, exitPrice, closed, pnl, equity+pnl)
	m.finalize(ctx, pos, exitPrice, reason, equity+pnl)
	m.logger.Printf("%s %s closed %g @ %g pnl=%+.2f total=%+.2f", pos.Key, reason, closed, exitPrice, pnl, pos.RealizedPnL)
	return pnl
}

// dustClose force-closes a remainder the venue cannot trade. No order is
// placed; the remainder is realized at the best available price and the
// trade is finalized.
func (m *Manager) dustClose(ctx context.Context, pos *domain.Position, price float64, equity float64) float64 {
	pnl := profit(pos.Side, pos.EntryPrice, price, pos.Qty)
	closed := pos.Qty
	pos.Qty = 0
	pos.RealizedPnL += pnl
	if closed > 0 {
		m.recordFill(ctx, pos, domain.ExitReasonDustClose, price, closed, pnl, equity+pnl)
	}
	m.finalize(ctx, pos, price, domain.ExitReasonDustClose, equity+pnl)
	m.logger.Printf("%s dust close %g @ %g pnl=%+.2f", pos.Key, closed, price, pnl)
	return pnl
}

// finalize removes the position and closes out its ledger trade.
func (m *Manager) finalize(ctx context.Context, pos *domain.Position, exitPrice float64, reason string, equity float64) {
	delete(m.positions, pos.Key)
	observability.RecordExit(reason)

	if m.trades == nil {
		return
	}
	err := m.trades.RecordClose(ctx, pos.TradeID, &domain.TradeClose{
		ExitPrice:    exitPrice,
		RealizedPnL:  pos.RealizedPnL,
		Reason:       reason,
		EquityAtExit: equity,
		ClosedAt:     m.now(),
	})
	if err != nil {
		m.logger.Printf("ledger close for %s failed: %v", pos.TradeID, err)
	}
}

// recordFill appends one close to the ledger, best-effort.
func (m *Manager) recordFill(ctx context.Context, pos *domain.Position, reason string, price, qty, pnl, equity float64) {
	if m.trades == nil {
		return
	}
	err := m.trades.RecordFill(ctx, &domain.Fill{
		TradeID:     pos.TradeID,
		Reason:      reason,
		Price:       price,
		Qty:         qty,
		RealizedPnL: pnl,
		Equity:      equity,
		FilledAt:    m.now(),
	})
	if err != nil {
		m.logger.Printf("ledger fill for %s failed: %v", pos.TradeID, err)
	}
}

// venueRules fetches the instrument constraints, falling back to
// unconstrained rules when the venue cannot be reached.
func (m *Manager) venueRules(ctx context.Context, symbol string) sizing.VenueRules {
	rules, err := m.connector.Rules(ctx, symbol)
	if err != nil {
		m.logger.Printf("rules for %s unavailable: %v", symbol, err)
		return sizing.VenueRules{}
	}
	return rules
}

// isDust reports whether qty is below the venue's tradable minimums.
func isDust(qty, price float64, rules sizing.VenueRules) bool {
	if qty <= 0 {
		return true
	}
	if rules.MinQty > 0 && qty < rules.MinQty {
		return true
	}
	if rules.MinNotional > 0 && qty*price < rules.MinNotional {
		return true
	}
	return false
}

// roundDown rounds qty down to the venue step.
func roundDown(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step) * step
}
