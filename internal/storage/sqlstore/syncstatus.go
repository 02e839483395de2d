package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
)

var syncStatusColumns = []string{
	"symbol", "frequency", "last_sync_date", "last_data_date",
	"status", "error_message", "total_records", "updated_at",
}

var upsertSyncStatusSQL = upsertSQL("sync_status", syncStatusColumns, []string{"symbol", "frequency"})

const selectSyncStatusSQL = `SELECT symbol, frequency, last_sync_date, last_data_date,
	status, error_message, total_records, updated_at FROM sync_status`

func (s *Store) SaveSyncStatus(ctx context.Context, st *models.SyncStatus) error {
	_, err := s.exec(ctx, upsertSyncStatusSQL,
		st.Symbol, string(st.Frequency), nullDate(st.LastSyncDate), nullDate(st.LastDataDate),
		st.Status, st.ErrorMessage, st.TotalRecords, timestamp(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save sync status: %w", err)
	}
	return nil
}

func (s *Store) GetSyncStatus(ctx context.Context, symbol string, freq models.Frequency) (*models.SyncStatus, error) {
	rows, err := s.query(ctx, selectSyncStatusSQL+" WHERE symbol = ? AND frequency = ?", symbol, string(freq))
	if err != nil {
		return nil, fmt.Errorf("failed to query sync status: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sync status %s/%s: %w", symbol, freq, common.ErrNotFound)
	}
	st, err := scanSyncStatus(rows)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error) {
	rows, err := s.query(ctx, selectSyncStatusSQL+" ORDER BY symbol, frequency")
	if err != nil {
		return nil, fmt.Errorf("failed to list sync status: %w", err)
	}
	defer rows.Close()

	var out []models.SyncStatus
	for rows.Next() {
		st, err := scanSyncStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanSyncStatus(rows *sql.Rows) (models.SyncStatus, error) {
	var (
		st                 models.SyncStatus
		freq, updatedAt    string
		lastSync, lastData sql.NullString
	)
	if err := rows.Scan(&st.Symbol, &freq, &lastSync, &lastData,
		&st.Status, &st.ErrorMessage, &st.TotalRecords, &updatedAt); err != nil {
		return st, fmt.Errorf("failed to scan sync status: %w", err)
	}
	var err error
	st.Frequency = models.Frequency(freq)
	st.UpdatedAt = parseTimestamp(updatedAt)
	if st.LastSyncDate, err = parseNullDate(lastSync); err != nil {
		return st, err
	}
	if st.LastDataDate, err = parseNullDate(lastData); err != nil {
		return st, err
	}
	return st, nil
}

// notFound maps sql.ErrNoRows to common.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return err
}
