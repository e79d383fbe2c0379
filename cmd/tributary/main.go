package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tributary-data/tributary/internal/sync"
	"github.com/tributary-data/tributary/pkg/config"
	"github.com/tributary-data/tributary/pkg/database"
	"github.com/tributary-data/tributary/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "tributary",
		Short: "Tributary - analytics database synchronization tool",
		Long: `Tributary copies rows from an external operations database into an
internal analytics database according to a declarative column-mapping file.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to the mapping configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tributary v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the internal database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), configFile)
		},
	})

	var tableName string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a one-time sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), configFile, tableName)
		},
	}
	syncCmd.Flags().StringVar(&tableName, "table", "", "Specific table to sync (default: all tables)")
	root.AddCommand(syncCmd)

	root.AddCommand(&cobra.Command{
		Use:   "scheduler",
		Short: "Run the sync scheduler loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), configFile)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and settings and initializes logging.
func setup(configFile string) (*config.Config, *config.Settings, error) {
	settings := config.LoadSettings()

	if err := logger.Init(logger.Config{Level: settings.LogLevel, Encoding: "json"}); err != nil {
		return nil, nil, fmt.Errorf("logger initialization failed: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, settings, nil
}

// buildManager wires the sync pipeline from configuration. In dev mode
// extraction runs against the mock data generator, so only the internal
// database needs to be reachable.
func buildManager(ctx context.Context, cfg *config.Config, settings *config.Settings) (*sync.Manager, func(), error) {
	pool, err := database.OpenInternal(ctx, cfg.Databases.Internal)
	if err != nil {
		return nil, nil, err
	}

	var extractor sync.Extractor
	cleanup := func() { pool.Close() }

	if settings.DevMode {
		logger.Get().Info("dev mode enabled, serving mock data")
		extractor = sync.NewMockExtractor(100)
	} else {
		external, err := database.OpenExternal(ctx, cfg.Databases.External)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		extractor = sync.NewSQLExtractor(external, cfg.Sync.TimestampColumn, cfg.Sync.Incremental, cfg.Sync.BatchSize)
		cleanup = func() {
			_ = external.Close()
			pool.Close()
		}
	}

	transformer := sync.NewTransformer(cfg.Transformations.DateColumns, cfg.Transformations.CategoryMapping)
	retry := sync.NewRetryPolicy(cfg.Sync.RetryAttempts, cfg.Sync.RetryDelay.Std())
	loader := sync.NewLoader(pool, cfg.Sync.BatchSize, retry)
	state := sync.NewStateStore(pool)

	return sync.NewManager(cfg, extractor, transformer, loader, state), cleanup, nil
}

func runInit(ctx context.Context, configFile string) error {
	cfg, _, err := setup(configFile)
	if err != nil {
		return err
	}

	pool, err := database.OpenInternal(ctx, cfg.Databases.Internal)
	if err != nil {
		return err
	}
	defer pool.Close()

	log := logger.Get()
	log.Info("initializing internal database schema")

	if err := sync.NewStateStore(pool).InitSchema(ctx); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	log.Info("internal database schema initialized")
	return nil
}

func runSync(ctx context.Context, configFile, table string) error {
	cfg, settings, err := setup(configFile)
	if err != nil {
		return err
	}

	manager, cleanup, err := buildManager(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	if table != "" {
		result, err := manager.SyncTable(ctx, table)
		if err != nil {
			return fmt.Errorf("sync failed for table %s: %w", table, err)
		}
		logger.Get().Info("sync completed",
			zap.String("table", table),
			zap.Int("fetched", result.Fetched),
			zap.Int("inserted", result.Inserted),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed))
		return nil
	}

	manager.SyncAll(ctx)
	return nil
}

func runScheduler(ctx context.Context, configFile string) error {
	cfg, settings, err := setup(configFile)
	if err != nil {
		return err
	}

	manager, cleanup, err := buildManager(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	interval := settings.EffectiveInterval(cfg.Sync.Interval.Std())
	scheduler := sync.NewScheduler(manager, interval)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
