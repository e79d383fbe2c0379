package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/models"
)

// fakeDB implements Beginner, recording upsert traffic.
type fakeDB struct {
	failBegin    bool
	failQueries  int   // fail this many Query calls before succeeding
	queryErr     error // error for failed Query calls, defaults to a deadlock
	updatedEvery int   // every n-th row reports as update instead of insert
	columns      int   // columns per row, defaults to 3

	queries   []string
	args      [][]any
	argCounts []int
	commits   int
	rollbacks int
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.failBegin {
		return nil, fmt.Errorf("connection refused")
	}
	return &fakeTx{db: db}, nil
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx.db.failQueries > 0 {
		tx.db.failQueries--
		if tx.db.queryErr != nil {
			return nil, tx.db.queryErr
		}
		return nil, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	}
	tx.db.queries = append(tx.db.queries, sql)
	tx.db.args = append(tx.db.args, args)
	tx.db.argCounts = append(tx.db.argCounts, len(args))

	columns := tx.db.columns
	if columns == 0 {
		columns = 3
	}
	rows := len(args) / columns
	return &fakeRows{total: rows, updatedEvery: tx.db.updatedEvery}, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.db.rollbacks++
	return nil
}

type fakeRows struct {
	pgx.Rows
	total        int
	updatedEvery int
	current      int
}

func (r *fakeRows) Next() bool {
	if r.current >= r.total {
		return false
	}
	r.current++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	inserted := true
	if r.updatedEvery > 0 && r.current%r.updatedEvery == 0 {
		inserted = false
	}
	*(dest[0].(*bool)) = inserted
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func recordChannel(records ...models.Record) <-chan models.Record {
	ch := make(chan models.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}

func testRecords(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{
			"product_id":  i + 1,
			"name":        fmt.Sprintf("Product %d", i+1),
			"category_id": "Dairy",
		}
	}
	return records
}

func TestLoadSplitsIntoBatches(t *testing.T) {
	db := &fakeDB{}
	loader := NewLoader(db, 2, NewRetryPolicy(1, 0))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel(testRecords(5)...))

	assert.Equal(t, 5, stats.Inserted)
	assert.Equal(t, 0, stats.Failed)
	assert.Len(t, db.queries, 3) // 2 + 2 + 1
	assert.Equal(t, 3, db.commits)
	assert.Equal(t, []int{6, 6, 3}, db.argCounts)
}

func TestLoadCountsInsertedAndUpdated(t *testing.T) {
	db := &fakeDB{updatedEvery: 2}
	loader := NewLoader(db, 10, NewRetryPolicy(1, 0))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel(testRecords(4)...))

	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 2, stats.Updated)
}

func TestLoadRetriesTransientFailure(t *testing.T) {
	db := &fakeDB{failQueries: 1}
	loader := NewLoader(db, 10, NewRetryPolicy(3, time.Millisecond))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel(testRecords(3)...))

	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 0, stats.SkippedBatches)
	assert.Equal(t, 1, db.rollbacks)
}

func TestLoadSkipsBatchAfterExhaustedRetries(t *testing.T) {
	db := &fakeDB{failBegin: true}
	loader := NewLoader(db, 2, NewRetryPolicy(2, time.Millisecond))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel(testRecords(5)...))

	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 5, stats.Failed)
	assert.Equal(t, 3, stats.SkippedBatches)
}

func TestLoadFailsFastOnPermanentError(t *testing.T) {
	// A constraint violation repeats on every attempt; the batch is
	// skipped after the first try instead of burning the retry budget.
	db := &fakeDB{
		failQueries: 10,
		queryErr:    &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
	}
	loader := NewLoader(db, 10, NewRetryPolicy(3, time.Millisecond))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel(testRecords(3)...))

	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 1, stats.SkippedBatches)
	assert.Equal(t, 9, db.failQueries) // single attempt
}

func TestStatementErrorType(t *testing.T) {
	assert.Equal(t, errors.ErrorTypeConnection, statementErrorType(&pgconn.PgError{Code: "40001"}))
	assert.Equal(t, errors.ErrorTypeConnection, statementErrorType(&pgconn.PgError{Code: "08006"}))
	assert.Equal(t, errors.ErrorTypeQuery, statementErrorType(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, errors.ErrorTypeConnection, statementErrorType(fmt.Errorf("broken pipe")))
}

func TestLoadEmptyStream(t *testing.T) {
	db := &fakeDB{}
	loader := NewLoader(db, 10, NewRetryPolicy(1, 0))

	stats := loader.Load(context.Background(), productsMapping(), recordChannel())

	assert.Equal(t, LoadStats{}, stats)
	assert.Empty(t, db.queries)
}

func TestBuildUpsertQuery(t *testing.T) {
	query := BuildUpsertQuery(productsMapping(), 2)

	assert.Equal(t,
		"INSERT INTO products (category_id, name, product_id) "+
			"VALUES ($1, $2, $3), ($4, $5, $6) "+
			"ON CONFLICT (product_id) "+
			"DO UPDATE SET category_id = EXCLUDED.category_id, name = EXCLUDED.name "+
			"RETURNING (xmax = 0) AS inserted",
		query)
}

func TestBuildUpsertQueryKeyOnlyMapping(t *testing.T) {
	mapping := models.TableMapping{
		Name:       "lookup",
		PrimaryKey: "id",
		Columns:    map[string]string{"id": "id"},
	}

	query := BuildUpsertQuery(mapping, 1)
	assert.Contains(t, query, "DO NOTHING")
	assert.NotContains(t, query, "DO UPDATE")
}

func TestUpsertArgsMissingColumnsBecomeNull(t *testing.T) {
	columns := productsMapping().InternalColumns()
	batch := []models.Record{{"product_id": 1, "name": "Milch"}}

	args := upsertArgs(batch, columns)

	require.Len(t, args, 3)
	assert.Nil(t, args[0]) // category_id missing
	assert.Equal(t, "Milch", args[1])
	assert.Equal(t, 1, args[2])
}
