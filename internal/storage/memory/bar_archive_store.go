package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BarArchiveStore is an in-memory implementation of storage.BarArchiveStore.
type BarArchiveStore struct {
	mu   sync.RWMutex
	data []*domain.BarRecord
}

// NewBarArchiveStore creates a new in-memory bar archive store.
func NewBarArchiveStore() *BarArchiveStore {
	return &BarArchiveStore{}
}

var _ storage.BarArchiveStore = (*BarArchiveStore)(nil)

// AppendBulk adds multiple bar records.
func (s *BarArchiveStore) AppendBulk(_ context.Context, records []*domain.BarRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		copy := *r
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByInstrument retrieves records for one instrument within [start, end]
// (inclusive), ordered by bar time ASC.
func (s *BarArchiveStore) GetByInstrument(_ context.Context, connector, symbol, timeframe string, start, end time.Time) ([]*domain.BarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BarRecord
	for _, r := range s.data {
		if r.Connector != connector || r.Symbol != symbol || r.Timeframe != timeframe {
			continue
		}
		if r.Bar.Time.Before(start) || r.Bar.Time.After(end) {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Bar.Time.Before(result[j].Bar.Time)
	})

	return result, nil
}
