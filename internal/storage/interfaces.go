package storage

import (
	"context"
	"time"

	"adaptive-trend-bot/internal/domain"
)

// TradeStore is the trade ledger. A trade has one row for its whole
// lifetime: RecordOpen creates it, RecordFill appends partial closes for
// audit, RecordClose finalizes it exactly once. Only finalized trades are
// visible to RecentClosed.
type TradeStore interface {
	// RecordOpen creates the ledger row for a confirmed entry.
	// Returns ErrDuplicateKey if trade_id exists.
	RecordOpen(ctx context.Context, t *domain.TradeOpen) error

	// RecordFill appends one completed close, partial or full.
	// Returns ErrNotFound if the trade does not exist.
	RecordFill(ctx context.Context, f *domain.Fill) error

	// RecordClose finalizes the trade. Returns ErrNotFound if the trade
	// does not exist and ErrDuplicateKey if it is already closed.
	RecordClose(ctx context.Context, tradeID string, c *domain.TradeClose) error

	// GetByID retrieves a trade by its ID. Open trades have zero exit
	// fields. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeOutcome, error)

	// FillsByTrade retrieves all fills for a trade, ordered by filled_at ASC.
	FillsByTrade(ctx context.Context, tradeID string) ([]*domain.Fill, error)

	// RecentClosed retrieves up to limit of the most recently closed
	// trades, ordered by closed_at ASC (oldest first).
	RecentClosed(ctx context.Context, limit int) ([]*domain.TradeOutcome, error)
}

// BlockedSymbolStore tracks symbols ineligible for new entries.
type BlockedSymbolStore interface {
	// Block inserts or replaces the block for b.Symbol.
	Block(ctx context.Context, b *domain.BlockedSymbol) error

	// Active retrieves all blocks still in force at the given time.
	Active(ctx context.Context, now time.Time) ([]*domain.BlockedSymbol, error)

	// Clear removes the block for a symbol. Clearing an unblocked
	// symbol is a no-op.
	Clear(ctx context.Context, symbol string) error
}

// BrainSnapshotStore provides access to brain cycle audit records.
type BrainSnapshotStore interface {
	// Insert appends a new snapshot.
	Insert(ctx context.Context, s *domain.BrainSnapshot) error

	// Latest retrieves the most recent snapshot. Returns ErrNotFound
	// when no cycle has run yet.
	Latest(ctx context.Context) (*domain.BrainSnapshot, error)
}

// EquityStore provides access to the account equity curve.
type EquityStore interface {
	// Append adds one equity sample.
	Append(ctx context.Context, p domain.EquityPoint) error

	// Range retrieves points within [start, end] (inclusive), ordered
	// by time ASC.
	Range(ctx context.Context, start, end time.Time) ([]domain.EquityPoint, error)
}

// BarArchiveStore keeps processed bars with their indicator context for
// later analysis. Writes are best-effort: an archive failure never blocks
// the trading loop.
type BarArchiveStore interface {
	// AppendBulk adds multiple bar records.
	AppendBulk(ctx context.Context, records []*domain.BarRecord) error

	// GetByInstrument retrieves records for one instrument within
	// [start, end] (inclusive), ordered by bar time ASC.
	GetByInstrument(ctx context.Context, connector, symbol, timeframe string, start, end time.Time) ([]*domain.BarRecord, error)
}
