package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurogrid/internal/config"
	"github.com/nvandessel/neurogrid/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neurogrid",
		Short: "Self-organizing neurons on a 3D lattice",
		Long: `neurogrid grows a network of neurons inside a 3D grid.

Neurons discover their neighbors, grow children into free cells, connect
to existing neighbors and prune weak connections. Scenarios script stimuli
and training signals; every step is recorded as a snapshot.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.neurogrid/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Snapshot database path (\":memory:\" for no persistence)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSnapshotsCmd(),
		newConfigCmd(),
		newExportCmd(),
		newImportCmd(),
	)

	return rootCmd
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.NeurogridConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveDBPath picks the snapshot database: --db, then the config, then
// the per-user default.
func resolveDBPath(cmd *cobra.Command, cfg *config.NeurogridConfig) (string, error) {
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		return path, nil
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}
	return store.DefaultDBPath()
}
