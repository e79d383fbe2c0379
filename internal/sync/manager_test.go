package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-data/tributary/pkg/config"
	"github.com/tributary-data/tributary/pkg/models"
)

// stubExtractor serves canned records and observes fetch calls.
type stubExtractor struct {
	records map[string][]models.Record
	err     error

	fetched []string
	since   map[string]time.Time
}

func (s *stubExtractor) Fetch(ctx context.Context, mapping models.TableMapping, since time.Time) (<-chan models.Record, <-chan error) {
	if s.since == nil {
		s.since = make(map[string]time.Time)
	}
	s.fetched = append(s.fetched, mapping.Name)
	s.since[mapping.Name] = since

	recordCh := make(chan models.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordCh)
		defer close(errCh)
		if s.err != nil {
			errCh <- s.err
			return
		}
		for _, record := range s.records[mapping.Name] {
			recordCh <- record.Clone()
		}
	}()

	return recordCh, errCh
}

func managerConfig() *config.Config {
	cfg := config.Default()
	cfg.Databases.External.Host = "mysql.example"
	cfg.Databases.Internal.Host = "pg.example"
	cfg.ColumnMappings = map[string]config.TableMappingConfig{
		"stores": {
			ExternalTable: "ext_stores",
			PrimaryKey:    "store_id",
			Mappings:      map[string]string{"id": "store_id", "store_name": "name", "town": "city"},
		},
		"products": {
			ExternalTable: "ext_products",
			PrimaryKey:    "product_id",
			Mappings:      map[string]string{"id": "product_id", "product_name": "name", "cat_id": "category_id"},
		},
		"sales": {
			ExternalTable: "ext_sales",
			PrimaryKey:    "bill_id",
			Mappings:      map[string]string{"invoice": "bill_id", "prod_id": "product_id", "qty": "quantity"},
		},
	}
	cfg.Transformations = config.TransformationsConfig{
		CategoryMapping: map[int]string{2: "Dairy"},
	}
	cfg.Sync.Tables = []string{"products", "sales"}
	cfg.Sync.BatchSize = 10
	cfg.Sync.RetryAttempts = 1
	cfg.Sync.RetryDelay = config.Duration(time.Millisecond)
	return cfg
}

func newTestManager(cfg *config.Config, extractor Extractor, db *fakeDB, stateDB *fakeStateDB) *Manager {
	transformer := NewTransformer(cfg.Transformations.DateColumns, cfg.Transformations.CategoryMapping)
	loader := NewLoader(db, cfg.Sync.BatchSize, NewRetryPolicy(cfg.Sync.RetryAttempts, cfg.Sync.RetryDelay.Std()))
	return NewManager(cfg, extractor, transformer, loader, NewStateStore(stateDB))
}

func TestSyncTable(t *testing.T) {
	cfg := managerConfig()
	extractor := &stubExtractor{
		records: map[string][]models.Record{
			"products": {
				{"product_id": 1, "name": "Vollmilch", "category_id": int64(2)},
				{"product_id": 2, "name": "Brot", "category_id": int64(9)},
			},
		},
	}
	db := &fakeDB{}
	stateDB := &fakeStateDB{nextLogID: 1}

	manager := newTestManager(cfg, extractor, db, stateDB)

	result, err := manager.SyncTable(context.Background(), "products")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Failed)

	// Known category codes replaced, unknown passed through.
	require.Len(t, db.args, 1)
	assert.Contains(t, db.args[0], "Dairy")
	assert.Contains(t, db.args[0], int64(9))

	// Sync log closed with success.
	require.NotEmpty(t, stateDB.execArgs)
	closing := stateDB.execArgs[len(stateDB.execArgs)-1]
	assert.Equal(t, models.SyncStatusSuccess, closing[5])
}

func TestSyncTableUsesWatermark(t *testing.T) {
	cfg := managerConfig()
	last := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	extractor := &stubExtractor{}
	stateDB := &fakeStateDB{nextLogID: 1, lastSync: &last}

	manager := newTestManager(cfg, extractor, &fakeDB{}, stateDB)

	_, err := manager.SyncTable(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, last, extractor.since["products"])
}

func TestSyncTableFullScanWhenNotIncremental(t *testing.T) {
	cfg := managerConfig()
	cfg.Sync.Incremental = false
	last := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	extractor := &stubExtractor{}
	stateDB := &fakeStateDB{nextLogID: 1, lastSync: &last}

	manager := newTestManager(cfg, extractor, &fakeDB{}, stateDB)

	_, err := manager.SyncTable(context.Background(), "products")
	require.NoError(t, err)
	assert.True(t, extractor.since["products"].IsZero())
}

func TestSyncTableExtractionFailure(t *testing.T) {
	cfg := managerConfig()
	extractor := &stubExtractor{err: context.DeadlineExceeded}
	stateDB := &fakeStateDB{nextLogID: 1}

	manager := newTestManager(cfg, extractor, &fakeDB{}, stateDB)

	_, err := manager.SyncTable(context.Background(), "products")
	require.Error(t, err)

	closing := stateDB.execArgs[len(stateDB.execArgs)-1]
	assert.Equal(t, models.SyncStatusFailed, closing[5])
}

func TestSyncTableSkippedBatchesMarkPassFailed(t *testing.T) {
	// A failed sync log never becomes the watermark, so the rows of a
	// skipped batch are re-fetched by the next pass.
	cfg := managerConfig()
	extractor := &stubExtractor{
		records: map[string][]models.Record{
			"products": {{"product_id": 1, "name": "Vollmilch", "category_id": int64(2)}},
		},
	}
	db := &fakeDB{failBegin: true}
	stateDB := &fakeStateDB{nextLogID: 1}

	manager := newTestManager(cfg, extractor, db, stateDB)

	result, err := manager.SyncTable(context.Background(), "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batches skipped")
	assert.Equal(t, 1, result.Failed)

	closing := stateDB.execArgs[len(stateDB.execArgs)-1]
	assert.Equal(t, models.SyncStatusFailed, closing[5])
}

func TestSyncTableUnmappedTable(t *testing.T) {
	manager := newTestManager(managerConfig(), &stubExtractor{}, &fakeDB{}, &fakeStateDB{})

	_, err := manager.SyncTable(context.Background(), "warehouses")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouses")
}

func TestSyncAllOrder(t *testing.T) {
	cfg := managerConfig() // configured tables: products, sales
	extractor := &stubExtractor{}
	manager := newTestManager(cfg, extractor, &fakeDB{}, &fakeStateDB{nextLogID: 1})

	manager.SyncAll(context.Background())

	// Stores always sync first so foreign keys resolve.
	assert.Equal(t, []string{"stores", "products", "sales"}, extractor.fetched)
}

func TestSyncAllAccumulatesTotals(t *testing.T) {
	cfg := managerConfig()
	extractor := &stubExtractor{
		records: map[string][]models.Record{
			"stores":   {{"store_id": 1, "name": "Mitte", "city": "Berlin"}},
			"products": {{"product_id": 1, "name": "Vollmilch", "category_id": int64(2)}},
			"sales":    {{"bill_id": "INV-1", "product_id": 1, "quantity": 2}},
		},
	}
	manager := newTestManager(cfg, extractor, &fakeDB{}, &fakeStateDB{nextLogID: 1})

	total := manager.SyncAll(context.Background())

	assert.Equal(t, 3, total.Fetched)
	assert.Equal(t, 3, total.Inserted)
	assert.Equal(t, 0, total.Failed)
}
