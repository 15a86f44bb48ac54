package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BlockedSymbolStore is an in-memory implementation of storage.BlockedSymbolStore.
type BlockedSymbolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BlockedSymbol // keyed by symbol
}

// NewBlockedSymbolStore creates a new in-memory blocked symbol store.
func NewBlockedSymbolStore() *BlockedSymbolStore {
	return &BlockedSymbolStore{
		data: make(map[string]*domain.BlockedSymbol),
	}
}

var _ storage.BlockedSymbolStore = (*BlockedSymbolStore)(nil)

// Block inserts or replaces the block for b.Symbol.
func (s *BlockedSymbolStore) Block(_ context.Context, b *domain.BlockedSymbol) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *b
	if b.Until != nil {
		until := *b.Until
		copy.Until = &until
	}
	s.data[b.Symbol] = &copy
	return nil
}

// Active retrieves all blocks still in force at the given time.
func (s *BlockedSymbolStore) Active(_ context.Context, now time.Time) ([]*domain.BlockedSymbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BlockedSymbol
	for _, b := range s.data {
		if !b.ActiveAt(now) {
			continue
		}
		copy := *b
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// Clear removes the block for a symbol.
func (s *BlockedSymbolStore) Clear(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, symbol)
	return nil
}
