// Package sync implements the extract-transform-load pipeline that
// copies rows from the external database into the internal analytics
// database, plus the sync bookkeeping and the scheduler around it.
package sync

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/logger"
	"github.com/tributary-data/tributary/pkg/models"
)

// Extractor produces a lazy, finite stream of records for one table.
// Records already carry internal column names; source columns absent
// from the mapping are never selected. The record channel is closed
// when the stream ends; a failure is delivered on the error channel.
type Extractor interface {
	Fetch(ctx context.Context, mapping models.TableMapping, since time.Time) (<-chan models.Record, <-chan error)
}

// SQLExtractor reads from the external database over database/sql.
type SQLExtractor struct {
	db              *sql.DB
	timestampColumn string
	incremental     bool
	batchSize       int
	logger          *zap.Logger
}

// NewSQLExtractor creates an extractor over the external database.
func NewSQLExtractor(db *sql.DB, timestampColumn string, incremental bool, batchSize int) *SQLExtractor {
	return &SQLExtractor{
		db:              db,
		timestampColumn: timestampColumn,
		incremental:     incremental,
		batchSize:       batchSize,
		logger:          logger.Get().With(zap.String("component", "extractor")),
	}
}

// Fetch streams rows for the mapped table, filtered to rows strictly
// newer than since when incremental mode is on and a previous sync
// exists.
func (e *SQLExtractor) Fetch(ctx context.Context, mapping models.TableMapping, since time.Time) (<-chan models.Record, <-chan error) {
	recordCh := make(chan models.Record, 100)
	errCh := make(chan error, 1)

	query, args := BuildSelectQuery(mapping, e.timestampColumn, e.incremental, since, e.batchSize)

	go func() {
		defer close(recordCh)
		defer close(errCh)

		e.logger.Debug("executing extraction query",
			zap.String("table", mapping.Name),
			zap.String("query", query))

		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			errCh <- errors.Wrap(err, errors.ErrorTypeConnection, "failed to query external database")
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			errCh <- errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
			return
		}

		for rows.Next() {
			record, err := scanRow(rows, columns)
			if err != nil {
				errCh <- errors.Wrap(err, errors.ErrorTypeData, "failed to scan row")
				return
			}

			select {
			case recordCh <- record:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if err := rows.Err(); err != nil {
			errCh <- errors.Wrap(err, errors.ErrorTypeConnection, "row iteration failed")
		}
	}()

	return recordCh, errCh
}

// BuildSelectQuery builds the extraction SELECT for a table mapping.
// External columns are aliased to internal names so downstream stages
// only ever see internal column names. When incremental is on and a
// previous sync exists, a strict greater-than predicate on the
// timestamp column excludes already-synced rows. A positive batchSize
// caps the result set with LIMIT; remaining rows are picked up by
// later passes.
func BuildSelectQuery(mapping models.TableMapping, timestampColumn string, incremental bool, since time.Time, batchSize int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")

	for i, external := range mapping.ExternalColumns() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(external)
		sb.WriteString(" AS ")
		sb.WriteString(mapping.Columns[external])
	}

	sb.WriteString(" FROM ")
	sb.WriteString(mapping.ExternalTable)

	var args []interface{}
	if incremental && !since.IsZero() {
		sb.WriteString(" WHERE ")
		sb.WriteString(timestampColumn)
		sb.WriteString(" > ?")
		args = append(args, since)
	}

	if batchSize > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(batchSize))
	}

	return sb.String(), args
}

// scanRow scans the current row into a Record keyed by internal column
// names. []byte values become strings so records stay driver-agnostic.
func scanRow(rows *sql.Rows, columns []string) (models.Record, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	record := make(models.Record, len(columns))
	for i, column := range columns {
		record[column] = convertValue(values[i])
	}
	return record, nil
}

// convertValue normalizes driver-specific values to plain Go types.
func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}
