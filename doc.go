// Package tributary is an ETL utility that copies rows from an external
// operations database (MySQL) into an internal analytics database
// (PostgreSQL) according to a declarative column-mapping file.
//
// The pipeline is a configuration-driven copy-and-transform loop:
//
//   - Extractor: SELECTs mapped columns from the external table,
//     optionally filtered to rows newer than the last successful sync.
//   - Transformer: renames columns, substitutes category codes for
//     labels, and normalizes date columns.
//   - Loader: upserts transformed rows in fixed-size batches with
//     bounded retry on transient failure.
//   - Scheduler: runs the pipeline for every configured table at a
//     fixed interval.
//
// Sync bookkeeping lives in the internal database's sync_logs table:
// the watermark for incremental extraction is the sync_end of the
// newest successful pass, so a failed pass never advances it.
//
// # Quick Start
//
//	tributary init                     # create the internal schema
//	tributary sync --table products    # one-shot sync of one table
//	tributary sync                     # one-shot sync of all tables
//	tributary scheduler                # run the interval loop
//
// Connection credentials are supplied through ${VAR} substitution in
// config.yaml; runtime switches use TRIBUTARY_-prefixed environment
// variables (TRIBUTARY_DEV_MODE serves generated mock data instead of
// the external database).
package tributary
