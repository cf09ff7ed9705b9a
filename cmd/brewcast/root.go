package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/brewcast/internal/config"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

// cli carries state shared by subcommands after PersistentPreRunE.
type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "brewcast",
		Short:        "Coffee order revenue predictions with feedback monitoring",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")

	root.AddCommand(newPredictCmd(c), newMonitorCmd(c), newSeedCmd(c))
	return root
}

// setup loads configuration (defaults -> file -> env) and initializes
// logging and metrics. Surfaces are built after it, so their /healthz
// handlers see the configured registry.
func (c *cli) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(ctx, c.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
		metrics.WithCustomLabels(map[string]string{"surface": cmd.Name()}),
	)

	c.cfg = cfg
	return nil
}
