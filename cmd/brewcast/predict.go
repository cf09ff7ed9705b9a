package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/brewcast/internal/adapters/http/api"
	"github.com/okian/brewcast/internal/adapters/http/swagger"
	"github.com/okian/brewcast/internal/adapters/logstore"
	"github.com/okian/brewcast/internal/adapters/mq/queue"
	"github.com/okian/brewcast/internal/adapters/mq/worker"
	"github.com/okian/brewcast/internal/adapters/session"
	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/config"
	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/internal/domain/regression"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

func newPredictCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Serve the order form, model predictions and feedback capture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := newPredictSurface(ctx, c.cfg)
			if err != nil {
				logger.Get().Error(ctx, "failed to start prediction surface", logger.Error(err))
				return err
			}
			return s.Run(ctx)
		},
	}
}

// predictSurface owns everything the prediction server needs.
type predictSurface struct {
	cfg      *config.Config
	mux      *http.ServeMux
	sessions *session.InMemoryStore
	mirror   *logstore.SQLiteMirror
	pool     *worker.Pool
	log      logger.Logger
}

func catalogFromConfig(cfg *config.Config) feedback.Catalog {
	return feedback.Catalog{
		SizeMinKg:     cfg.SizeMinKg,
		SizeMaxKg:     cfg.SizeMaxKg,
		SizeStepKg:    cfg.SizeStepKg,
		SizeDefaultKg: cfg.SizeDefaultKg,
		CoffeeTypes:   cfg.CoffeeTypes,
		RoastTypes:    cfg.RoastTypes,
	}
}

func reportModelReload(log logger.Logger) regression.ReloadHook {
	return func(model, result string, err error) {
		metrics.RecordModelReload(model, result)
		if err != nil {
			log.Warn(context.Background(), "model reload failed; keeping previous artifact",
				logger.String("model", model), logger.Error(err))
		}
	}
}

// newPredictSurface loads both model artifacts. A missing artifact is an
// error so the process exits instead of serving half a comparison.
func newPredictSurface(ctx context.Context, cfg *config.Config) (*predictSurface, error) {
	log := logger.Named("predict")
	hook := regression.WithReloadHook(reportModelReload(log))

	baseline, err := regression.NewCache(cfg.BaselineModelPath, hook)
	if err != nil {
		return nil, fmt.Errorf("baseline model: %w", err)
	}
	improved, err := regression.NewCache(cfg.ImprovedModelPath, hook)
	if err != nil {
		return nil, fmt.Errorf("improved model: %w", err)
	}

	s := &predictSurface{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		sessions: session.NewInMemoryStore(session.WithTTL(cfg.SessionTTL())),
		log:      log,
	}

	opts := []service.PredictorOption{
		service.WithCatalog(catalogFromConfig(cfg)),
		service.WithPredictorLogger(log.Named("predictor")),
	}
	if cfg.MirrorSQLitePath != "" {
		s.mirror, err = logstore.OpenSQLiteMirror(ctx, cfg.MirrorSQLitePath)
		if err != nil {
			return nil, err
		}
		q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.MirrorQueueSize))
		s.pool = worker.NewPool(1, q, s.mirror)
		opts = append(opts, service.WithMirror(q))
	}

	pred := service.NewPredictor(baseline, improved, logstore.NewCSVStore(cfg.LogPath), opts...)
	swagger.Register(ctx, s.mux)
	api.NewPredictServer(pred, s.sessions).Register(ctx, s.mux)
	return s, nil
}

// Run serves until ctx is canceled, then drains the mirror.
func (s *predictSurface) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	serve(gctx, g, newHTTPServer(s.cfg.PredictAddr, s.mux), s.log)
	g.Go(func() error { return s.sessions.Run(gctx) })
	g.Go(func() error { return runSystemMetrics(gctx) })

	if s.pool != nil {
		// Workers outlive gctx so Shutdown can drain queued batches.
		s.pool.Start(context.WithoutCancel(gctx))
		g.Go(func() error {
			<-gctx.Done()
			return s.closeMirror(context.Background())
		})
	}

	return g.Wait()
}

func (s *predictSurface) closeMirror(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.log.Warn(ctx, "mirror drain incomplete", logger.Error(err))
		}
	}
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Close()
}
