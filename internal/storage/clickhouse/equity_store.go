package clickhouse

import (
	"context"
	"fmt"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// EquityStore implements storage.EquityStore using ClickHouse. The table
// uses ReplacingMergeTree keyed by timestamp, so a retried append of the
// same sample collapses on merge.
type EquityStore struct {
	conn *Conn
}

// NewEquityStore creates a new EquityStore.
func NewEquityStore(conn *Conn) *EquityStore {
	return &EquityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// Append adds one equity sample.
func (s *EquityStore) Append(ctx context.Context, p domain.EquityPoint) error {
	err := s.conn.Exec(ctx,
		`INSERT INTO equity_curve (ts, equity) VALUES (?, ?)`,
		p.Time, p.Equity,
	)
	if err != nil {
		return fmt.Errorf("append equity point: %w", err)
	}
	return nil
}

// Range retrieves points within [start, end] (inclusive), ordered by time ASC.
func (s *EquityStore) Range(ctx context.Context, start, end time.Time) ([]domain.EquityPoint, error) {
	query := `
		SELECT ts, equity
		FROM equity_curve
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query equity range: %w", err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Time, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	return points, nil
}
