package memory

import (
	"context"
	"sync"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BrainSnapshotStore is an in-memory implementation of storage.BrainSnapshotStore.
type BrainSnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.BrainSnapshot // append order
}

// NewBrainSnapshotStore creates a new in-memory brain snapshot store.
func NewBrainSnapshotStore() *BrainSnapshotStore {
	return &BrainSnapshotStore{}
}

var _ storage.BrainSnapshotStore = (*BrainSnapshotStore)(nil)

// Insert appends a new snapshot.
func (s *BrainSnapshotStore) Insert(_ context.Context, snap *domain.BrainSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *snap
	copy.BlockedSymbols = append([]string(nil), snap.BlockedSymbols...)
	s.data = append(s.data, &copy)
	return nil
}

// Latest retrieves the most recent snapshot.
func (s *BrainSnapshotStore) Latest(_ context.Context) (*domain.BrainSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := s.data[0]
	for _, snap := range s.data[1:] {
		if !snap.Time.Before(latest.Time) {
			latest = snap
		}
	}

	copy := *latest
	copy.BlockedSymbols = append([]string(nil), latest.BlockedSymbols...)
	return &copy, nil
}
