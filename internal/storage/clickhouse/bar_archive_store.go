package clickhouse

import (
	"context"
	"fmt"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// BarArchiveStore implements storage.BarArchiveStore using ClickHouse.
// Duplicates from retried appends collapse on merge via ReplacingMergeTree.
type BarArchiveStore struct {
	conn *Conn
}

// NewBarArchiveStore creates a new BarArchiveStore.
func NewBarArchiveStore(conn *Conn) *BarArchiveStore {
	return &BarArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarArchiveStore = (*BarArchiveStore)(nil)

// AppendBulk adds multiple bar records.
func (s *BarArchiveStore) AppendBulk(ctx context.Context, records []*domain.BarRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bar_archive (
			connector, symbol, timeframe, ts,
			open, high, low, close, volume, atr
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			r.Connector, r.Symbol, r.Timeframe, r.Bar.Time,
			r.Bar.Open, r.Bar.High, r.Bar.Low, r.Bar.Close, r.Bar.Volume, r.ATR,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrument retrieves records for one instrument within [start, end]
// (inclusive), ordered by bar time ASC.
func (s *BarArchiveStore) GetByInstrument(ctx context.Context, connector, symbol, timeframe string, start, end time.Time) ([]*domain.BarRecord, error) {
	query := `
		SELECT connector, symbol, timeframe, ts,
		       open, high, low, close, volume, atr
		FROM bar_archive
		WHERE connector = ? AND symbol = ? AND timeframe = ?
		  AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, connector, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bar archive: %w", err)
	}
	defer rows.Close()

	return scanBarRecords(rows)
}

// scanBarRecords scans multiple rows.
func scanBarRecords(rows chRows) ([]*domain.BarRecord, error) {
	var records []*domain.BarRecord

	for rows.Next() {
		var r domain.BarRecord
		err := rows.Scan(
			&r.Connector, &r.Symbol, &r.Timeframe, &r.Bar.Time,
			&r.Bar.Open, &r.Bar.High, &r.Bar.Low, &r.Bar.Close, &r.Bar.Volume, &r.ATR,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar archive row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar archive rows: %w", err)
	}

	return records, nil
}
