package models

import (
	"sort"
	"time"
)

// TableMapping describes how one external table maps onto an internal one.
type TableMapping struct {
	// Name is the logical (and internal) table name
	Name string
	// ExternalTable is the table name in the source database
	ExternalTable string
	// PrimaryKey is the internal column used for upsert conflict detection
	PrimaryKey string
	// Columns maps external column name -> internal column name.
	// Source columns absent from this map are dropped.
	Columns map[string]string
}

// InternalColumns returns the internal column names in a stable order.
// A deterministic order keeps generated SQL reproducible.
func (m TableMapping) InternalColumns() []string {
	cols := make([]string, 0, len(m.Columns))
	for _, internal := range m.Columns {
		cols = append(cols, internal)
	}
	sort.Strings(cols)
	return cols
}

// ExternalColumns returns the external column names in a stable order.
func (m TableMapping) ExternalColumns() []string {
	cols := make([]string, 0, len(m.Columns))
	for external := range m.Columns {
		cols = append(cols, external)
	}
	sort.Strings(cols)
	return cols
}

// SyncState tracks the last successful sync per table. It is derived
// from the newest successful SyncLog row, read before each incremental
// extraction and advanced only after a sync pass commits cleanly.
type SyncState struct {
	Table    string
	LastSync time.Time
}

// HasSynced reports whether the table has ever completed a sync.
func (s SyncState) HasSynced() bool {
	return !s.LastSync.IsZero()
}

// Sync status values persisted in sync_logs.status.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusSuccess    = "success"
	SyncStatusFailed     = "failed"
)

// SyncLog is one row of the sync_logs bookkeeping table.
type SyncLog struct {
	LogID           int64
	SyncStart       time.Time
	SyncEnd         time.Time
	TableName       string
	RecordsFetched  int
	RecordsInserted int
	RecordsUpdated  int
	RecordsFailed   int
	Status          string
	ErrorMessage    string
}

// SyncResult summarizes one sync pass over one or more tables.
type SyncResult struct {
	Fetched  int
	Inserted int
	Updated  int
	Failed   int
	Duration time.Duration
}

// Add accumulates another result into this one.
func (r *SyncResult) Add(other SyncResult) {
	r.Fetched += other.Fetched
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Failed += other.Failed
}
