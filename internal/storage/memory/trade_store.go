package memory

import (
	"context"
	"sort"
	"sync"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string]*domain.TradeOutcome // keyed by trade_id
	fills  map[string][]*domain.Fill       // keyed by trade_id, append order
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string]*domain.TradeOutcome),
		fills:  make(map[string][]*domain.Fill),
	}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// RecordOpen creates the ledger row for a confirmed entry.
func (s *TradeStore) RecordOpen(_ context.Context, t *domain.TradeOpen) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.trades[t.TradeID] = &domain.TradeOutcome{
		TradeID:       t.TradeID,
		Connector:     t.Connector,
		Symbol:        t.Symbol,
		Side:          t.Side,
		EntryPrice:    t.EntryPrice,
		Qty:           t.Qty,
		RiskUSD:       t.RiskUSD,
		EquityAtEntry: t.EquityAtEntry,
		OpenedAt:      t.OpenedAt,
	}
	return nil
}

// RecordFill appends one completed close, partial or full.
func (s *TradeStore) RecordFill(_ context.Context, f *domain.Fill) error {
	if f == nil || f.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[f.TradeID]; !exists {
		return storage.ErrNotFound
	}

	copy := *f
	s.fills[f.TradeID] = append(s.fills[f.TradeID], &copy)
	return nil
}

// RecordClose finalizes the trade exactly once.
func (s *TradeStore) RecordClose(_ context.Context, tradeID string, c *domain.TradeClose) error {
	if tradeID == "" || c == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.trades[tradeID]
	if !exists {
		return storage.ErrNotFound
	}
	if !t.ClosedAt.IsZero() {
		return storage.ErrDuplicateKey
	}

	t.ExitPrice = c.ExitPrice
	t.RealizedPnL = c.RealizedPnL
	t.Reason = c.Reason
	t.EquityAtExit = c.EquityAtExit
	t.ClosedAt = c.ClosedAt
	return nil
}

// GetByID retrieves a trade by its ID.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.trades[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// FillsByTrade retrieves all fills for a trade, ordered by filled_at ASC.
func (s *TradeStore) FillsByTrade(_ context.Context, tradeID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Fill
	for _, f := range s.fills[tradeID] {
		copy := *f
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].FilledAt.Before(result[j].FilledAt)
	})

	return result, nil
}

// RecentClosed retrieves up to limit of the most recently closed trades,
// oldest first.
func (s *TradeStore) RecentClosed(_ context.Context, limit int) ([]*domain.TradeOutcome, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var closed []*domain.TradeOutcome
	for _, t := range s.trades {
		if t.ClosedAt.IsZero() {
			continue
		}
		copy := *t
		closed = append(closed, &copy)
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].ClosedAt.Before(closed[j].ClosedAt)
	})

	if len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}
	return closed, nil
}
