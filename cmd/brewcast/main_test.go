package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/spf13/cobra"

	"github.com/okian/brewcast/internal/adapters/logstore"
	"github.com/okian/brewcast/internal/config"
	"github.com/okian/brewcast/internal/domain/regression"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	cfg.LogPath = filepath.Join(dir, "monitoring_logs.csv")
	cfg.BaselineModelPath = filepath.Join("..", "..", "models", "revenue_model_v1.json")
	cfg.ImprovedModelPath = filepath.Join("..", "..", "models", "revenue_model_v2.json")
	cfg.PredictAddr = "127.0.0.1:0"
	cfg.MonitorAddr = "127.0.0.1:0"
	return cfg
}

func post(t *testing.T, client *http.Client, url, body string) int {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes every subcommand", func() {
			names := make([]string, 0, len(root.Commands()))
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "predict")
			convey.So(names, convey.ShouldContain, "monitor")
			convey.So(names, convey.ShouldContain, "seed")
			convey.So(root.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
		})

		convey.Convey("And seed carries its load flags", func() {
			seed, _, err := root.Find([]string{"seed"})
			convey.So(err, convey.ShouldBeNil)
			for _, name := range []string{"url", "monitor-url", "submissions", "workers", "timeout"} {
				convey.So(seed.Flags().Lookup(name), convey.ShouldNotBeNil)
			}
		})
	})
}

func TestSetup(t *testing.T) {
	convey.Convey("Given a YAML config file", t, func() {
		path := filepath.Join(t.TempDir(), "brewcast.yaml")
		yaml := "predict_addr: \":9601\"\nlog_path: /tmp/brewcast-test.csv\nrecent_comments_limit: 3\nlog_format: json\n"
		convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)

		c := &cli{configPath: path}
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())
		cmd.SetErr(&strings.Builder{})
		convey.Reset(func() {
			_ = logger.Init()
		})

		convey.Convey("When setting up", func() {
			err := c.setup(cmd)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(c.cfg.PredictAddr, convey.ShouldEqual, ":9601")
				convey.So(c.cfg.LogPath, convey.ShouldEqual, "/tmp/brewcast-test.csv")
				convey.So(c.cfg.RecentCommentsLimit, convey.ShouldEqual, 3)
				convey.So(c.cfg.MonitorAddr, convey.ShouldEqual, ":8502")
			})
		})

		convey.Convey("When the file is missing", func() {
			c.configPath = filepath.Join(t.TempDir(), "nope.yaml")
			err := c.setup(cmd)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a config file with a metrics namespace", t, func() {
		path := filepath.Join(t.TempDir(), "brewcast.yaml")
		yaml := "metrics_namespace: cafe\nmetrics_refresh_seconds: 4\n"
		convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)

		c := &cli{configPath: path}
		cmd := &cobra.Command{Use: "monitor"}
		cmd.SetContext(context.Background())
		cmd.SetErr(&strings.Builder{})
		convey.Reset(func() {
			_ = logger.Init()
			metrics.Configure()
		})

		convey.So(c.setup(cmd), convey.ShouldBeNil)

		convey.Convey("Then /healthz series carry the namespace and surface label", func() {
			s, err := newMonitorSurface(context.Background(), c.cfg)
			convey.So(err, convey.ShouldBeNil)

			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			body := rec.Body.String()
			convey.So(body, convey.ShouldContainSubstring, `cafe_log_rows{surface="monitor"}`)
			convey.So(body, convey.ShouldNotContainSubstring, "brewcast_")
			convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 4*time.Second)
		})
	})
}

func TestPredictSurface(t *testing.T) {
	convey.Convey("Given a prediction surface with a SQLite mirror", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.MirrorSQLitePath = filepath.Join(t.TempDir(), "mirror.db")

		s, err := newPredictSurface(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		s.pool.Start(ctx)

		srv := httptest.NewServer(s.mux)
		convey.Reset(srv.Close)

		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar, Timeout: 5 * time.Second}

		convey.Convey("A feedback submission lands in the CSV log and the mirror", func() {
			convey.So(post(t, client, srv.URL+"/api/predict", `{"size_kg":0.5,"coffee_type":"Excelsa","roast_type":"Light"}`), convey.ShouldEqual, http.StatusOK)
			convey.So(post(t, client, srv.URL+"/api/feedback", `{"feedback_score":2,"feedback_text":"too high"}`), convey.ShouldEqual, http.StatusCreated)

			convey.So(s.closeMirror(ctx), convey.ShouldBeNil)

			snap, err := logstore.NewCSVStore(cfg.LogPath).Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(snap.Records, convey.ShouldHaveLength, 2)

			mirror, err := logstore.OpenSQLiteMirror(ctx, cfg.MirrorSQLitePath)
			convey.So(err, convey.ShouldBeNil)
			defer mirror.Close()
			n, err := mirror.Count(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 2)
		})

		convey.Convey("The API docs are served alongside", func() {
			resp, err := client.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(s.closeMirror(ctx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a missing model artifact", t, func() {
		cfg := testConfig(t)
		cfg.ImprovedModelPath = filepath.Join(t.TempDir(), "missing.json")

		_, err := newPredictSurface(context.Background(), cfg)
		convey.So(errors.Is(err, regression.ErrArtifactNotFound), convey.ShouldBeTrue)
	})
}

func TestMonitorSurface(t *testing.T) {
	convey.Convey("Given a monitoring surface", t, func() {
		cfg := testConfig(t)

		convey.Convey("An invalid refresh schedule is rejected", func() {
			cfg.SummaryRefresh = "every now and then"
			_, err := newMonitorSurface(context.Background(), cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("The dashboard shows the empty notice", func() {
			s, err := newMonitorSurface(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)

			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "No monitoring logs found yet.")
		})

		convey.Convey("Run stops cleanly on cancel", func() {
			s, err := newMonitorSurface(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()
			time.Sleep(100 * time.Millisecond)
			cancel()

			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				err = errors.New("monitor did not stop")
			}
			convey.So(err, convey.ShouldBeNil)
		})
	})
}
