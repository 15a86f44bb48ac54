package postgres

import (
	"context"
	"fmt"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BlockedSymbolStore implements storage.BlockedSymbolStore using PostgreSQL.
type BlockedSymbolStore struct {
	pool *Pool
}

// NewBlockedSymbolStore creates a new BlockedSymbolStore.
func NewBlockedSymbolStore(pool *Pool) *BlockedSymbolStore {
	return &BlockedSymbolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BlockedSymbolStore = (*BlockedSymbolStore)(nil)

// Block inserts or replaces the block for b.Symbol.
func (s *BlockedSymbolStore) Block(ctx context.Context, b *domain.BlockedSymbol) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO blocked_symbols (symbol, until_at, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE
		SET until_at = EXCLUDED.until_at,
		    reason = EXCLUDED.reason,
		    created_at = EXCLUDED.created_at
	`

	_, err := s.pool.Exec(ctx, query, b.Symbol, b.Until, b.Reason, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("block symbol: %w", err)
	}
	return nil
}

// Active retrieves all blocks still in force at the given time.
func (s *BlockedSymbolStore) Active(ctx context.Context, now time.Time) ([]*domain.BlockedSymbol, error) {
	query := `
		SELECT symbol, until_at, reason, created_at
		FROM blocked_symbols
		WHERE until_at IS NULL OR until_at > $1
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("get active blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*domain.BlockedSymbol
	for rows.Next() {
		var b domain.BlockedSymbol
		if err := rows.Scan(&b.Symbol, &b.Until, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blocked symbol row: %w", err)
		}
		blocks = append(blocks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked symbol rows: %w", err)
	}

	return blocks, nil
}

// Clear removes the block for a symbol. Clearing an unblocked symbol is a no-op.
func (s *BlockedSymbolStore) Clear(ctx context.Context, symbol string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blocked_symbols WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("clear blocked symbol: %w", err)
	}
	return nil
}
