package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. One row in
// live_trades per position lifetime; partial closes are appended to
// trade_fills.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// RecordOpen creates the ledger row for a confirmed entry.
// Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) RecordOpen(ctx context.Context, t *domain.TradeOpen) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO live_trades (
			trade_id, connector, symbol, side,
			entry_price, qty, risk_usd, equity_at_entry,
			entry_order_id, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Connector, t.Symbol, string(t.Side),
		t.EntryPrice, t.Qty, t.RiskUSD, t.EquityAtEntry,
		t.EntryOrderID, t.OpenedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record trade open: %w", err)
	}
	return nil
}

// RecordFill appends one completed close, partial or full.
// Returns ErrNotFound if the trade does not exist.
func (s *TradeStore) RecordFill(ctx context.Context, f *domain.Fill) error {
	if f == nil || f.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_fills (trade_id, reason, price, qty, realized_pnl, equity, filled_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM live_trades WHERE trade_id = $1)
	`

	tag, err := s.pool.Exec(ctx, query,
		f.TradeID, f.Reason, f.Price, f.Qty, f.RealizedPnL, f.Equity, f.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("record trade fill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordClose finalizes the trade. Returns ErrNotFound if the trade does
// not exist and ErrDuplicateKey if it is already closed.
func (s *TradeStore) RecordClose(ctx context.Context, tradeID string, c *domain.TradeClose) error {
	if tradeID == "" || c == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE live_trades
		SET exit_price = $2, realized_pnl = $3, exit_reason = $4,
		    equity_at_exit = $5, closed_at = $6
		WHERE trade_id = $1 AND closed_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, query,
		tradeID, c.ExitPrice, c.RealizedPnL, c.Reason, c.EquityAtExit, c.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("record trade close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing trade from a double close.
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM live_trades WHERE trade_id = $1)`, tradeID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check trade exists: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeOutcome, error) {
	query := `
		SELECT trade_id, connector, symbol, side,
		       entry_price, qty, risk_usd, equity_at_entry, opened_at,
		       exit_price, realized_pnl, exit_reason, equity_at_exit, closed_at
		FROM live_trades
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeOutcome(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// FillsByTrade retrieves all fills for a trade, ordered by filled_at ASC.
func (s *TradeStore) FillsByTrade(ctx context.Context, tradeID string) ([]*domain.Fill, error) {
	query := `
		SELECT trade_id, reason, price, qty, realized_pnl, equity, filled_at
		FROM trade_fills
		WHERE trade_id = $1
		ORDER BY filled_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get fills by trade: %w", err)
	}
	defer rows.Close()

	var fills []*domain.Fill
	for rows.Next() {
		var f domain.Fill
		err := rows.Scan(&f.TradeID, &f.Reason, &f.Price, &f.Qty, &f.RealizedPnL, &f.Equity, &f.FilledAt)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}
		fills = append(fills, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}

// RecentClosed retrieves up to limit of the most recently closed trades,
// ordered by closed_at ASC.
func (s *TradeStore) RecentClosed(ctx context.Context, limit int) ([]*domain.TradeOutcome, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT trade_id, connector, symbol, side,
		       entry_price, qty, risk_usd, equity_at_entry, opened_at,
		       exit_price, realized_pnl, exit_reason, equity_at_exit, closed_at
		FROM (
			SELECT * FROM live_trades
			WHERE closed_at IS NOT NULL
			ORDER BY closed_at DESC, trade_id DESC
			LIMIT $1
		) recent
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent closed trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeOutcome
	for rows.Next() {
		t, err := scanTradeOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// scanTradeOutcome scans a single row into a TradeOutcome. Exit columns
// are NULL while the trade is open.
func scanTradeOutcome(row pgx.Row) (*domain.TradeOutcome, error) {
	var (
		t            domain.TradeOutcome
		side         string
		exitPrice    *float64
		realizedPnL  *float64
		exitReason   *string
		equityAtExit *float64
		closedAt     *time.Time
	)

	err := row.Scan(
		&t.TradeID, &t.Connector, &t.Symbol, &side,
		&t.EntryPrice, &t.Qty, &t.RiskUSD, &t.EquityAtEntry, &t.OpenedAt,
		&exitPrice, &realizedPnL, &exitReason, &equityAtExit, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Side(side)
	if exitPrice != nil {
		t.ExitPrice = *exitPrice
	}
	if realizedPnL != nil {
		t.RealizedPnL = *realizedPnL
	}
	if exitReason != nil {
		t.Reason = *exitReason
	}
	if equityAtExit != nil {
		t.EquityAtExit = *equityAtExit
	}
	if closedAt != nil {
		t.ClosedAt = *closedAt
	}

	return &t, nil
}
