package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/brewcast/internal/loadgen"
)

// Default seed constants.
const (
	defaultSubmissions    = 200
	defaultWorkersPerCore = 2
	defaultRequestTimeout = 30 * time.Second
	defaultSeedTimeout    = 10 * time.Minute
)

func newSeedCmd(_ *cli) *cobra.Command {
	cfg := loadgen.Config{}
	var total time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Simulate customer sessions against a running prediction surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), total)
			defer cancel()
			_, err := loadgen.Run(ctx, cfg)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8501", "Base URL of the prediction surface")
	f.StringVar(&cfg.MonitorURL, "monitor-url", "", "Base URL of the monitoring surface; enables row count verification")
	f.IntVar(&cfg.Submissions, "submissions", defaultSubmissions, "Number of predict+feedback sessions")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersPerCore, "Number of concurrent sessions")
	f.DurationVar(&cfg.Timeout, "timeout", defaultRequestTimeout, "HTTP request timeout")
	f.DurationVar(&total, "deadline", defaultSeedTimeout, "Overall run deadline")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log each failed session")
	return cmd
}
