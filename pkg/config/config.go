// Package config provides the configuration system for Tributary.
// A single YAML mapping file describes both database connections, the
// per-table column mappings, the transformation rules, and the sync
// parameters. Credentials are supplied through ${VAR} environment
// substitution so the file itself stays secret-free.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" or "30m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure parsed from config.yaml.
type Config struct {
	// Databases holds the external (source) and internal (target) connections
	Databases DatabasesConfig `yaml:"databases"`

	// ColumnMappings maps a logical table name to its mapping definition
	ColumnMappings map[string]TableMappingConfig `yaml:"column_mappings"`

	// Transformations describes row-level transformation rules
	Transformations TransformationsConfig `yaml:"transformations"`

	// Sync controls batching, retries and scheduling
	Sync SyncConfig `yaml:"sync"`
}

// DatabasesConfig groups the two database connections.
type DatabasesConfig struct {
	// External is the source database (MySQL)
	External DatabaseConfig `yaml:"external"`
	// Internal is the analytics database (PostgreSQL)
	Internal DatabaseConfig `yaml:"internal"`
}

// DatabaseConfig describes a single database connection.
type DatabaseConfig struct {
	// Type is the driver type ("mysql" or "postgresql")
	Type string `yaml:"type"`
	// Host is the database host name
	Host string `yaml:"host"`
	// Port is the database port
	Port int `yaml:"port"`
	// Database is the database name
	Database string `yaml:"database"`
	// Username for authentication
	Username string `yaml:"username"`
	// Password for authentication (use ${VAR} substitution)
	Password string `yaml:"password"`
	// PoolSize caps open connections (0 = driver default)
	PoolSize int `yaml:"pool_size"`
	// MaxOverflow allows extra connections beyond PoolSize
	MaxOverflow int `yaml:"max_overflow"`
}

// TableMappingConfig maps external columns onto internal ones for one table.
type TableMappingConfig struct {
	// ExternalTable is the table name in the source database
	ExternalTable string `yaml:"external_table"`
	// PrimaryKey is the internal column used for upsert conflict detection
	PrimaryKey string `yaml:"primary_key"`
	// Mappings is external column name -> internal column name
	Mappings map[string]string `yaml:"mappings"`
}

// TransformationsConfig describes row-level transformation rules.
type TransformationsConfig struct {
	// DateColumns lists columns normalized to timestamps
	DateColumns []string `yaml:"date_columns"`
	// CategoryMapping replaces numeric category codes with labels
	CategoryMapping map[int]string `yaml:"category_mapping"`
}

// SyncConfig controls batching, retry behavior and scheduling.
type SyncConfig struct {
	// BatchSize is the number of records per upsert batch
	BatchSize int `yaml:"batch_size"`
	// RetryAttempts is the maximum number of attempts per batch
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryDelay is the fixed delay between attempts
	RetryDelay Duration `yaml:"retry_delay"`
	// Incremental enables timestamp-filtered extraction
	Incremental bool `yaml:"incremental"`
	// TimestampColumn is the source column used for incremental filtering
	TimestampColumn string `yaml:"timestamp_column"`
	// Interval is the scheduler wall-clock interval
	Interval Duration `yaml:"interval"`
	// Tables lists the logical tables to sync
	Tables []string `yaml:"tables"`
}

// Default returns a Config populated with production-ready defaults.
// Loaded files override these values field by field.
func Default() *Config {
	return &Config{
		Databases: DatabasesConfig{
			External: DatabaseConfig{Type: "mysql", Port: 3306, PoolSize: 5, MaxOverflow: 10},
			Internal: DatabaseConfig{Type: "postgresql", Port: 5432, PoolSize: 5, MaxOverflow: 10},
		},
		Sync: SyncConfig{
			BatchSize:       1000,
			RetryAttempts:   3,
			RetryDelay:      Duration(5 * time.Second),
			Incremental:     true,
			TimestampColumn: "updated_at",
			Interval:        Duration(time.Hour),
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Callers should invoke this after loading to catch errors early.
func (c *Config) Validate() error {
	if c.Databases.External.Host == "" {
		return fmt.Errorf("databases.external.host is required")
	}
	if c.Databases.Internal.Host == "" {
		return fmt.Errorf("databases.internal.host is required")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.RetryAttempts < 0 {
		return fmt.Errorf("sync.retry_attempts cannot be negative")
	}
	if c.Sync.Incremental && c.Sync.TimestampColumn == "" {
		return fmt.Errorf("sync.timestamp_column is required when incremental sync is enabled")
	}
	if len(c.Sync.Tables) == 0 {
		return fmt.Errorf("sync.tables must list at least one table")
	}
	for _, table := range c.Sync.Tables {
		mapping, ok := c.ColumnMappings[table]
		if !ok {
			return fmt.Errorf("no column mapping configured for table %q", table)
		}
		if mapping.ExternalTable == "" {
			return fmt.Errorf("column_mappings.%s.external_table is required", table)
		}
		if mapping.PrimaryKey == "" {
			return fmt.Errorf("column_mappings.%s.primary_key is required", table)
		}
		if len(mapping.Mappings) == 0 {
			return fmt.Errorf("column_mappings.%s.mappings must not be empty", table)
		}
	}
	return nil
}

// Mapping returns the table mapping for a logical table name.
func (c *Config) Mapping(table string) (TableMappingConfig, error) {
	mapping, ok := c.ColumnMappings[table]
	if !ok {
		return TableMappingConfig{}, fmt.Errorf("no configuration found for table %q", table)
	}
	return mapping, nil
}
