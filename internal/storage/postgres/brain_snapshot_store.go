package postgres

import (
	"context"
	"fmt"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BrainSnapshotStore implements storage.BrainSnapshotStore using PostgreSQL.
type BrainSnapshotStore struct {
	pool *Pool
}

// NewBrainSnapshotStore creates a new BrainSnapshotStore.
func NewBrainSnapshotStore(pool *Pool) *BrainSnapshotStore {
	return &BrainSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BrainSnapshotStore = (*BrainSnapshotStore)(nil)

// Insert appends a new snapshot.
func (s *BrainSnapshotStore) Insert(ctx context.Context, snap *domain.BrainSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO brain_snapshots (
			taken_at, mode,
			short_win_rate, short_avg_r, short_equity_chg,
			base_win_rate, base_avg_r, sample_count,
			blocked_symbols, risk_per_trade, max_exposure
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Time, string(snap.Mode),
		snap.ShortWinRate, snap.ShortAvgR, snap.ShortEquityChg,
		snap.BaseWinRate, snap.BaseAvgR, snap.SampleCount,
		snap.BlockedSymbols, snap.RiskPerTrade, snap.MaxExposure,
	)
	if err != nil {
		return fmt.Errorf("insert brain snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot. Returns ErrNotFound when no
// cycle has run yet.
func (s *BrainSnapshotStore) Latest(ctx context.Context) (*domain.BrainSnapshot, error) {
	query := `
		SELECT taken_at, mode,
		       short_win_rate, short_avg_r, short_equity_chg,
		       base_win_rate, base_avg_r, sample_count,
		       blocked_symbols, risk_per_trade, max_exposure
		FROM brain_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`

	var (
		snap domain.BrainSnapshot
		mode string
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&snap.Time, &mode,
		&snap.ShortWinRate, &snap.ShortAvgR, &snap.ShortEquityChg,
		&snap.BaseWinRate, &snap.BaseAvgR, &snap.SampleCount,
		&snap.BlockedSymbols, &snap.RiskPerTrade, &snap.MaxExposure,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest brain snapshot: %w", err)
	}

	snap.Mode = domain.Mode(mode)
	return &snap, nil
}
