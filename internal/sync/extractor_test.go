package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-data/tributary/pkg/models"
)

func productsMapping() models.TableMapping {
	return models.TableMapping{
		Name:          "products",
		ExternalTable: "ext_products",
		PrimaryKey:    "product_id",
		Columns: map[string]string{
			"id":           "product_id",
			"product_name": "name",
			"cat_id":       "category_id",
		},
	}
}

func TestBuildSelectQueryFullScan(t *testing.T) {
	query, args := BuildSelectQuery(productsMapping(), "updated_at", false, time.Time{}, 0)

	assert.Equal(t,
		"SELECT cat_id AS category_id, id AS product_id, product_name AS name FROM ext_products",
		query)
	assert.Empty(t, args)
}

func TestBuildSelectQueryIncremental(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	query, args := BuildSelectQuery(productsMapping(), "updated_at", true, since, 0)

	assert.Contains(t, query, "WHERE updated_at > ?")
	require.Len(t, args, 1)
	assert.Equal(t, since, args[0])
}

func TestBuildSelectQueryPredicateIsStrict(t *testing.T) {
	// Rows with timestamp equal to the watermark were synced by the
	// pass that recorded it and must not be fetched again.
	since := time.Now()
	query, _ := BuildSelectQuery(productsMapping(), "updated_at", true, since, 0)

	assert.Contains(t, query, "> ?")
	assert.NotContains(t, query, ">=")
}

func TestBuildSelectQueryIncrementalWithoutWatermark(t *testing.T) {
	// First incremental run has no watermark and falls back to a full scan.
	query, args := BuildSelectQuery(productsMapping(), "updated_at", true, time.Time{}, 0)

	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestBuildSelectQuerySelectsOnlyMappedColumns(t *testing.T) {
	query, _ := BuildSelectQuery(productsMapping(), "updated_at", false, time.Time{}, 0)

	// Unmapped source columns never appear; they are dropped at extraction.
	assert.NotContains(t, query, "*")
	assert.NotContains(t, query, "description")
}

func TestBuildSelectQueryBatchLimit(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	query, args := BuildSelectQuery(productsMapping(), "updated_at", true, since, 500)

	assert.Equal(t,
		"SELECT cat_id AS category_id, id AS product_id, product_name AS name FROM ext_products WHERE updated_at > ? LIMIT 500",
		query)
	require.Len(t, args, 1)
}

func TestBuildSelectQueryNoBatchLimit(t *testing.T) {
	// A non-positive batch size means fetch everything.
	query, _ := BuildSelectQuery(productsMapping(), "updated_at", false, time.Time{}, 0)
	assert.NotContains(t, query, "LIMIT")
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, "hello", convertValue([]byte("hello")))
	assert.Equal(t, int64(42), convertValue(int64(42)))
	assert.Nil(t, convertValue(nil))

	now := time.Now()
	assert.Equal(t, now, convertValue(now))
}
