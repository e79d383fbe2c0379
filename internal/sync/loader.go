package sync

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/logger"
	"github.com/tributary-data/tributary/pkg/models"
)

// Beginner starts transactions on the internal database. *pgxpool.Pool
// satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadStats summarizes one load pass.
type LoadStats struct {
	Inserted       int
	Updated        int
	Failed         int
	SkippedBatches int
}

// Loader upserts transformed records into the internal database in
// fixed-size batches. Each batch runs in its own transaction; a batch
// that keeps failing after the configured retries is skipped and
// counted, and the load continues.
type Loader struct {
	db        Beginner
	batchSize int
	retry     *RetryPolicy
	logger    *zap.Logger
}

// NewLoader creates a loader writing to the internal database.
func NewLoader(db Beginner, batchSize int, retry *RetryPolicy) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{
		db:        db,
		batchSize: batchSize,
		retry:     retry,
		logger:    logger.Get().With(zap.String("component", "loader")),
	}
}

// Load consumes the record stream and upserts it batch by batch.
func (l *Loader) Load(ctx context.Context, mapping models.TableMapping, records <-chan models.Record) LoadStats {
	var stats LoadStats
	batch := make([]models.Record, 0, l.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.flushBatch(ctx, mapping, batch, &stats)
		batch = batch[:0]
	}

	for record := range records {
		batch = append(batch, record)
		if len(batch) >= l.batchSize {
			flush()
		}
	}
	flush()

	return stats
}

// flushBatch upserts one batch with retries. After exhausting retries
// the batch is skipped with a logged warning.
func (l *Loader) flushBatch(ctx context.Context, mapping models.TableMapping, batch []models.Record, stats *LoadStats) {
	var inserted, updated int

	err := l.retry.ExecuteWithCondition(ctx, func() error {
		var attemptErr error
		inserted, updated, attemptErr = l.upsertBatch(ctx, mapping, batch)
		return attemptErr
	}, errors.IsRetryable)

	if err != nil {
		stats.Failed += len(batch)
		stats.SkippedBatches++
		l.logger.Warn("batch skipped after exhausting retries",
			zap.String("table", mapping.Name),
			zap.Int("batch_size", len(batch)),
			zap.String("first_record", batch[0].JSON()),
			zap.Error(err))
		return
	}

	stats.Inserted += inserted
	stats.Updated += updated
}

// upsertBatch writes one batch inside a transaction and reports how
// many rows were inserted versus updated.
func (l *Loader) upsertBatch(ctx context.Context, mapping models.TableMapping, batch []models.Record) (inserted, updated int, err error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	columns := mapping.InternalColumns()
	query := BuildUpsertQuery(mapping, len(batch))
	args := upsertArgs(batch, columns)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		err = errors.Wrap(err, statementErrorType(err), "upsert failed")
		return 0, 0, err
	}

	for rows.Next() {
		var wasInsert bool
		if scanErr := rows.Scan(&wasInsert); scanErr != nil {
			rows.Close()
			err = errors.Wrap(scanErr, errors.ErrorTypeData, "failed to scan upsert result")
			return 0, 0, err
		}
		if wasInsert {
			inserted++
		} else {
			updated++
		}
	}
	rows.Close()
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Wrap(rowsErr, statementErrorType(rowsErr), "upsert result iteration failed")
		return 0, 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		err = errors.Wrap(err, errors.ErrorTypeConnection, "failed to commit batch")
		return 0, 0, err
	}

	return inserted, updated, nil
}

// statementErrorType classifies a failed statement. Errors the server
// reports with a transient SQLSTATE class (connection exceptions,
// transaction rollbacks such as deadlocks and serialization failures,
// resource exhaustion, operator intervention) are connection errors and
// worth retrying; other server errors are permanent query errors.
// Failures without a SQLSTATE never reached the server and count as
// connection errors too.
func statementErrorType(err error) errors.ErrorType {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return errors.ErrorTypeConnection
	}
	if len(pgErr.Code) < 2 {
		return errors.ErrorTypeQuery
	}
	switch pgErr.Code[:2] {
	case "08", "40", "53", "57":
		return errors.ErrorTypeConnection
	default:
		return errors.ErrorTypeQuery
	}
}

// BuildUpsertQuery builds a multi-row INSERT ... ON CONFLICT statement
// for a batch of the given size. The RETURNING clause distinguishes
// fresh inserts from updates: xmax is zero only for rows no other
// transaction has touched, i.e. newly inserted ones.
func BuildUpsertQuery(mapping models.TableMapping, batchLen int) string {
	columns := mapping.InternalColumns()

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(mapping.Name)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	arg := 1
	for row := 0; row < batchLen; row++ {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(arg))
			arg++
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(mapping.PrimaryKey)
	sb.WriteString(")")

	updates := make([]string, 0, len(columns))
	for _, column := range columns {
		if column == mapping.PrimaryKey {
			continue
		}
		updates = append(updates, column+" = EXCLUDED."+column)
	}

	if len(updates) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sb.WriteString(" DO UPDATE SET ")
		sb.WriteString(strings.Join(updates, ", "))
	}

	sb.WriteString(" RETURNING (xmax = 0) AS inserted")
	return sb.String()
}

// upsertArgs flattens a batch into positional arguments matching the
// column order of BuildUpsertQuery. Missing columns become NULL.
func upsertArgs(batch []models.Record, columns []string) []interface{} {
	args := make([]interface{}, 0, len(batch)*len(columns))
	for _, record := range batch {
		for _, column := range columns {
			args = append(args, record[column])
		}
	}
	return args
}
