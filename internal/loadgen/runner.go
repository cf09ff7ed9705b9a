package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/brewcast/pkg/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	rowsPerSubmission = 2
	verifyAttempts    = 10
	verifyBackoff     = 200 * time.Millisecond
)

// Run executes a seeding run and returns its statistics. A mismatch between
// the expected and observed row counts returns ErrVerification.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting brewcast seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("monitorURL", cfg.MonitorURL),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers))

	catalog, err := fetchCatalog(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.MonitorURL != "" {
		if stats.RowsBefore, err = countRows(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("%w: monitor: %w", ErrUnhealthy, err)
		}
	}

	var successful, failed, latencyNs int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Submissions; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			if err := simulateSession(gctx, &cfg, catalog); err != nil {
				atomic.AddInt64(&failed, 1)
				if cfg.Verbose {
					log.Warn(gctx, "session failed", logger.Error(err))
				}
				return nil
			}
			atomic.AddInt64(&latencyNs, int64(time.Since(start)))
			atomic.AddInt64(&successful, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("seed run cancelled: %w", err)
	}

	stats.Successful = int(successful)
	stats.Failed = int(failed)
	stats.Submitted = stats.Successful + stats.Failed
	if successful > 0 {
		stats.MeanLatency = time.Duration(latencyNs / successful)
	}

	if cfg.MonitorURL != "" {
		if err := verifyRows(ctx, &cfg, stats); err != nil {
			stats.Duration = time.Since(stats.StartTime)
			return stats, err
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// fetchCatalog doubles as the health check of the prediction surface.
func fetchCatalog(ctx context.Context, cfg *Config) (Catalog, error) {
	client, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return Catalog{}, err
	}
	var catalog Catalog
	status, err := client.Get(ctx, cfg.BaseURL+"/api/options", &catalog)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return Catalog{}, fmt.Errorf("%w: options returned %d", ErrUnhealthy, status)
	}
	if len(catalog.CoffeeTypes) == 0 || len(catalog.RoastTypes) == 0 {
		return Catalog{}, fmt.Errorf("%w: empty catalog", ErrUnhealthy)
	}
	return catalog, nil
}

// verifyRows polls the monitor until it reports exactly two new rows per
// successful submission.
func verifyRows(ctx context.Context, cfg *Config, stats *Stats) error {
	want := stats.RowsBefore + rowsPerSubmission*stats.Successful
	for attempt := 0; attempt < verifyAttempts; attempt++ {
		n, err := countRows(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVerification, err)
		}
		stats.RowsAfter = n
		if n == want {
			stats.Verified = true
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(verifyBackoff):
		}
	}
	return fmt.Errorf("%w: have %d rows, want %d", ErrVerification, stats.RowsAfter, want)
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Named("loadgen").Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("rowsBefore", stats.RowsBefore),
		logger.Int("rowsAfter", stats.RowsAfter),
		logger.Bool("verified", stats.Verified),
		logger.Duration("meanLatency", stats.MeanLatency),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond))
}
