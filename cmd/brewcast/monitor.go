package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/brewcast/internal/adapters/http/api"
	"github.com/okian/brewcast/internal/adapters/http/swagger"
	"github.com/okian/brewcast/internal/adapters/logstore"
	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/config"
	"github.com/okian/brewcast/pkg/logger"
)

func newMonitorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Serve the monitoring dashboard over the shared log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := newMonitorSurface(ctx, c.cfg)
			if err != nil {
				logger.Get().Error(ctx, "failed to start monitoring surface", logger.Error(err))
				return err
			}
			return s.Run(ctx)
		},
	}
}

// monitorSurface owns the dashboard server and its background refreshers.
type monitorSurface struct {
	cfg     *config.Config
	mux     *http.ServeMux
	monitor *service.Monitor
	cron    *cron.Cron
	watcher *logstore.Watcher
	log     logger.Logger
}

func newMonitorSurface(ctx context.Context, cfg *config.Config) (*monitorSurface, error) {
	log := logger.Named("monitor")
	reader := logstore.NewCachedReader(logstore.NewCSVStore(cfg.LogPath), cfg.LogPath)

	s := &monitorSurface{
		cfg: cfg,
		mux: http.NewServeMux(),
		monitor: service.NewMonitor(reader,
			service.WithCommentLimit(cfg.RecentCommentsLimit),
			service.WithMonitorLogger(log.Named("dashboard")),
		),
		cron: cron.New(),
		log:  log,
	}

	if _, err := s.cron.AddFunc(cfg.SummaryRefresh, s.refresh); err != nil {
		return nil, fmt.Errorf("summary_refresh %q: %w", cfg.SummaryRefresh, err)
	}
	if cfg.WatchLog {
		s.watcher = logstore.NewWatcher(cfg.LogPath, s.monitor.OnLogChanged, logstore.WithWatcherLogger(log.Named("watcher")))
	}

	swagger.Register(ctx, s.mux)
	api.NewMonitorServer(s.monitor).Register(ctx, s.mux)
	return s, nil
}

func (s *monitorSurface) refresh() {
	ctx := context.Background()
	if err := s.monitor.Refresh(ctx); err != nil {
		s.log.Error(ctx, "summary refresh failed", logger.Error(err))
	}
}

// Run serves until ctx is canceled.
func (s *monitorSurface) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	serve(gctx, g, newHTTPServer(s.cfg.MonitorAddr, s.mux), s.log)
	g.Go(func() error { return runSystemMetrics(gctx) })
	g.Go(func() error {
		s.refresh()
		s.cron.Start()
		<-gctx.Done()
		<-s.cron.Stop().Done()
		return nil
	})
	if s.watcher != nil {
		g.Go(func() error {
			// The dashboard still works on cache stat checks if watching fails.
			if err := s.watcher.Run(gctx); err != nil {
				s.log.Warn(gctx, "log watcher stopped", logger.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
