package sync

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/models"
)

// Querier runs statements on the internal database. *pgxpool.Pool
// satisfies it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StateStore persists sync bookkeeping in the internal database's
// sync_logs table. The last-synced timestamp for a table is the newest
// sync_end of a successful run, so a failed pass never advances the
// watermark.
type StateStore struct {
	db Querier
}

// NewStateStore creates a state store over the internal database.
func NewStateStore(db Querier) *StateStore {
	return &StateStore{db: db}
}

// InitSchema creates the internal tables, including sync_logs.
func (s *StateStore) InitSchema(ctx context.Context) error {
	for _, ddl := range models.InternalSchema {
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to apply schema statement")
		}
	}
	return nil
}

// LastSyncTime returns the per-table sync state. A table that has never
// completed a successful sync yields a zero LastSync.
func (s *StateStore) LastSyncTime(ctx context.Context, table string) (models.SyncState, error) {
	state := models.SyncState{Table: table}

	var lastSync time.Time
	err := s.db.QueryRow(ctx,
		`SELECT sync_end FROM sync_logs
		 WHERE table_name = $1 AND status = $2 AND sync_end IS NOT NULL
		 ORDER BY sync_end DESC LIMIT 1`,
		table, models.SyncStatusSuccess,
	).Scan(&lastSync)

	if stderrors.Is(err, pgx.ErrNoRows) || stderrors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read last sync time")
	}

	state.LastSync = lastSync
	return state, nil
}

// LogStart records the beginning of a sync pass and returns the log id.
func (s *StateStore) LogStart(ctx context.Context, table string) (int64, error) {
	var logID int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO sync_logs (sync_start, table_name, status)
		 VALUES ($1, $2, $3) RETURNING log_id`,
		time.Now(), table, models.SyncStatusInProgress,
	).Scan(&logID)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to record sync start")
	}
	return logID, nil
}

// LogEnd closes a sync pass with counts and final status. The status is
// failed when errorMessage is non-empty, success otherwise.
func (s *StateStore) LogEnd(ctx context.Context, logID int64, result models.SyncResult, errorMessage string) error {
	status := models.SyncStatusSuccess
	var errMsg interface{}
	if errorMessage != "" {
		status = models.SyncStatusFailed
		errMsg = errorMessage
	}

	_, err := s.db.Exec(ctx,
		`UPDATE sync_logs
		 SET sync_end = $1, records_fetched = $2, records_inserted = $3,
		     records_updated = $4, records_failed = $5, status = $6, error_message = $7
		 WHERE log_id = $8`,
		time.Now(), result.Fetched, result.Inserted, result.Updated,
		result.Failed, status, errMsg, logID,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to record sync end")
	}
	return nil
}
