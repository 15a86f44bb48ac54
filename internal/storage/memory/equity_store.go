package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// EquityStore is an in-memory implementation of storage.EquityStore.
type EquityStore struct {
	mu   sync.RWMutex
	data []domain.EquityPoint
}

// NewEquityStore creates a new in-memory equity store.
func NewEquityStore() *EquityStore {
	return &EquityStore{}
}

var _ storage.EquityStore = (*EquityStore)(nil)

// Append adds one equity sample.
func (s *EquityStore) Append(_ context.Context, p domain.EquityPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, p)
	return nil
}

// Range retrieves points within [start, end] (inclusive), ordered by time ASC.
func (s *EquityStore) Range(_ context.Context, start, end time.Time) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EquityPoint
	for _, p := range s.data {
		if p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})

	return result, nil
}
