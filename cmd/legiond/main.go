package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"legioncraft.ai/internal/sim/tuning"
)

type app struct {
	configPath string
	dataDir    string
	verbose    bool

	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "legiond",
		Short: "Legion lifecycle engine",
		Long: `legiond runs hostile legions against actors in a voxel world.

It schedules warnings, spawns legions near their targets, drives each
legion's state machine and tactics every tick, and retires them when
their target is gone.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.verbose {
				config = zap.NewDevelopmentConfig()
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			a.logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "tuning YAML file (blocks.json is read from the same directory)")
	root.PersistentFlags().StringVar(&a.dataDir, "data", "./data", "data directory for logs, index and snapshots")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.serveCmd(), a.simulateCmd(), a.historyCmd())
	return root
}

func (a *app) loadTuning() (tuning.Tuning, error) {
	if a.configPath == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(a.configPath)
}

func (a *app) configDir() string {
	if a.configPath == "" {
		return "./configs"
	}
	return filepath.Dir(a.configPath)
}

func (a *app) indexPath() string { return filepath.Join(a.dataDir, "index", "legions.sqlite") }
func (a *app) snapshotDir() string { return filepath.Join(a.dataDir, "snapshots") }
