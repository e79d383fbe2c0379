package config

import (
	"time"

	"github.com/spf13/viper"
)

// Settings holds runtime settings supplied via environment variables.
// These are process-level switches, as opposed to the mapping file which
// describes the data. All variables use the TRIBUTARY_ prefix, e.g.
// TRIBUTARY_DEV_MODE=true selects mock data instead of the external
// database.
type Settings struct {
	// DevMode serves extraction from the mock data generator
	DevMode bool
	// LogLevel overrides the default log verbosity
	LogLevel string
	// SyncInterval overrides the configured scheduler interval (minutes)
	SyncInterval time.Duration
}

// LoadSettings reads runtime settings from the environment.
func LoadSettings() *Settings {
	v := viper.New()
	v.SetEnvPrefix("TRIBUTARY")
	v.AutomaticEnv()

	v.SetDefault("dev_mode", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("sync_interval_minutes", 0)

	settings := &Settings{
		DevMode:  v.GetBool("dev_mode"),
		LogLevel: v.GetString("log_level"),
	}

	if minutes := v.GetInt("sync_interval_minutes"); minutes > 0 {
		settings.SyncInterval = time.Duration(minutes) * time.Minute
	}

	return settings
}

// EffectiveInterval resolves the scheduler interval, preferring the
// environment override over the mapping file value.
func (s *Settings) EffectiveInterval(configured time.Duration) time.Duration {
	if s.SyncInterval > 0 {
		return s.SyncInterval
	}
	if configured > 0 {
		return configured
	}
	return time.Hour
}
