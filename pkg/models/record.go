// Package models provides the data model for Tributary: the flat Record
// produced by extraction and consumed by load, the table mapping that
// drives column renaming, and the sync bookkeeping rows persisted in the
// internal database.
package models

import (
	gojson "github.com/goccy/go-json"
)

// Record is a flat mapping of column name to scalar value. Extraction
// produces records with internal column names already applied; the
// transformer and loader never see external names.
type Record map[string]interface{}

// Get returns the value for a column and whether it is present.
func (r Record) Get(column string) (interface{}, bool) {
	v, ok := r[column]
	return v, ok
}

// Set sets the value for a column.
func (r Record) Set(column string, value interface{}) {
	r[column] = value
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// JSON renders the record as JSON for debug logging. Marshal failures
// degrade to an empty object rather than interrupting the sync.
func (r Record) JSON() string {
	data, err := gojson.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}
