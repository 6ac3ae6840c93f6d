package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Arbiter-AC/arbiter/internal/adapter/outbound/memory"
	"github.com/Arbiter-AC/arbiter/internal/adapter/outbound/sqlite"
	"github.com/Arbiter-AC/arbiter/internal/adapter/outbound/state"
	"github.com/Arbiter-AC/arbiter/internal/config"
	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
	"github.com/Arbiter-AC/arbiter/internal/service"
	"github.com/Arbiter-AC/arbiter/internal/telemetry"
)

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the policy data index from the published store",
	Long: `Rebuild the policy data index from the published policy store.

The index is a rebuildable cache of the published (decision-side) store.
After a crash, a restore from backup, or detected divergence, this command
rewrites every index entry from the published store and drops entries whose
policy is no longer published.`,
	RunE: runRebuildIndex,
}

func init() {
	rootCmd.AddCommand(rebuildIndexCmd)
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	shutdown, err := telemetry.SetupProvider(ctx, "arbiter", cfg.Telemetry.TracingEnabled)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dataStore, err := openDataStore(cfg, logger)
	if err != nil {
		return err
	}

	written, err := service.RebuildPolicyIndex(ctx, store, dataStore, logger)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("Rebuilt index with %d entries\n", written)
	return nil
}

// openStore opens the configured persistence backend. The returned close
// function is a no-op for the memory backend.
func openStore(cfg *config.Config, logger *slog.Logger) (policy.PersistenceManager, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		st, err := sqlite.Open(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close sqlite store", "error", err)
			}
		}, nil
	default:
		return memory.NewPersistenceStore(), func() {}, nil
	}
}

// openDataStore opens the configured policy data index backend.
func openDataStore(cfg *config.Config, logger *slog.Logger) (policy.DataStore, error) {
	switch cfg.Index.Backend {
	case config.IndexBackendFile:
		ds, err := state.NewFileDataStore(cfg.Index.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file index: %w", err)
		}
		return ds, nil
	default:
		return memory.NewDataStore(), nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
