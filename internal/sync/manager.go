package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/config"
	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/logger"
	"github.com/tributary-data/tributary/pkg/metrics"
	"github.com/tributary-data/tributary/pkg/models"
)

// Manager orchestrates the extract-transform-load pipeline for the
// configured tables. Tables sync sequentially, one pass at a time.
type Manager struct {
	cfg         *config.Config
	extractor   Extractor
	transformer *Transformer
	loader      *Loader
	state       *StateStore
	logger      *zap.Logger
}

// NewManager wires the pipeline stages together.
func NewManager(cfg *config.Config, extractor Extractor, transformer *Transformer, loader *Loader, state *StateStore) *Manager {
	return &Manager{
		cfg:         cfg,
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		state:       state,
		logger:      logger.Get().With(zap.String("component", "sync-manager")),
	}
}

// tableMapping resolves the models.TableMapping for a logical table.
func (m *Manager) tableMapping(table string) (models.TableMapping, error) {
	mapping, err := m.cfg.Mapping(table)
	if err != nil {
		return models.TableMapping{}, errors.Wrap(err, errors.ErrorTypeConfig, "unmapped table")
	}
	return models.TableMapping{
		Name:          table,
		ExternalTable: mapping.ExternalTable,
		PrimaryKey:    mapping.PrimaryKey,
		Columns:       mapping.Mappings,
	}, nil
}

// SyncTable runs one extract-transform-load pass for a single table.
// Extraction failures abort the pass; load-batch failures are already
// retried and skipped inside the loader, and mark the pass failed so
// the watermark does not advance past the skipped rows.
func (m *Manager) SyncTable(ctx context.Context, table string) (models.SyncResult, error) {
	log := logger.WithTable(table).With(zap.String("component", "sync-manager"))
	log.Info("starting table sync")

	start := time.Now()
	var result models.SyncResult

	mapping, err := m.tableMapping(table)
	if err != nil {
		return result, err
	}

	logID, err := m.state.LogStart(ctx, table)
	if err != nil {
		return result, err
	}

	var since time.Time
	if m.cfg.Sync.Incremental {
		state, err := m.state.LastSyncTime(ctx, table)
		if err != nil {
			m.finishLog(ctx, logID, result, err)
			return result, err
		}
		since = state.LastSync
		if state.HasSynced() {
			log.Info("incremental sync", zap.Time("last_sync", since))
		} else {
			log.Info("no previous sync, running full extraction")
		}
	}

	recordCh, errCh := m.extractor.Fetch(ctx, mapping, since)

	transformed := make(chan models.Record, 100)
	go func() {
		defer close(transformed)
		for record := range recordCh {
			result.Fetched++
			transformed <- m.transformer.Apply(table, record)
		}
	}()

	stats := m.loader.Load(ctx, mapping, transformed)
	result.Inserted = stats.Inserted
	result.Updated = stats.Updated
	result.Failed = stats.Failed
	result.Duration = time.Since(start)

	var syncErr error
	if extractErr := <-errCh; extractErr != nil {
		syncErr = extractErr
	} else if stats.SkippedBatches > 0 {
		syncErr = errors.Newf(errors.ErrorTypeData, "%d batches skipped after exhausting retries", stats.SkippedBatches)
	}

	m.finishLog(ctx, logID, result, syncErr)
	m.recordMetrics(table, result, syncErr)

	if syncErr != nil {
		log.Error("table sync failed",
			zap.Int("fetched", result.Fetched),
			zap.Int("failed", result.Failed),
			zap.Error(syncErr))
		return result, syncErr
	}

	log.Info("table sync completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// SyncAll syncs every configured table in foreign-key-safe order.
// A failed table is logged and the sync continues with the next one.
func (m *Manager) SyncAll(ctx context.Context) models.SyncResult {
	m.logger.Info("starting sync pass")
	start := time.Now()

	var total models.SyncResult
	for _, table := range m.syncOrder() {
		result, err := m.SyncTable(ctx, table)
		total.Add(result)
		if err != nil && ctx.Err() != nil {
			break
		}
	}
	total.Duration = time.Since(start)

	m.logger.Info("sync pass completed",
		zap.Int("fetched", total.Fetched),
		zap.Int("inserted", total.Inserted),
		zap.Int("updated", total.Updated),
		zap.Int("failed", total.Failed),
		zap.Duration("duration", total.Duration))

	return total
}

// syncOrder filters the canonical FK-safe order down to the configured
// tables. Stores are always included so sales rows can reference them.
func (m *Manager) syncOrder() []string {
	configured := make(map[string]bool, len(m.cfg.Sync.Tables))
	for _, table := range m.cfg.Sync.Tables {
		configured[table] = true
	}

	order := make([]string, 0, len(models.SyncOrder))
	for _, table := range models.SyncOrder {
		if configured[table] || table == "stores" {
			order = append(order, table)
		}
	}
	return order
}

func (m *Manager) finishLog(ctx context.Context, logID int64, result models.SyncResult, syncErr error) {
	errorMessage := ""
	if syncErr != nil {
		errorMessage = syncErr.Error()
	}
	if err := m.state.LogEnd(ctx, logID, result, errorMessage); err != nil {
		m.logger.Warn("failed to close sync log", zap.Int64("log_id", logID), zap.Error(err))
	}
}

func (m *Manager) recordMetrics(table string, result models.SyncResult, syncErr error) {
	metrics.RecordsFetched.WithLabelValues(table).Add(float64(result.Fetched))
	metrics.RecordsInserted.WithLabelValues(table).Add(float64(result.Inserted))
	metrics.RecordsUpdated.WithLabelValues(table).Add(float64(result.Updated))
	metrics.RecordsFailed.WithLabelValues(table).Add(float64(result.Failed))
	metrics.SyncDuration.WithLabelValues(table).Observe(result.Duration.Seconds())

	status := models.SyncStatusSuccess
	if syncErr != nil {
		status = models.SyncStatusFailed
	}
	metrics.SyncRuns.WithLabelValues(table, status).Inc()
}
