package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/flok/internal/adapters/http/api"
	app "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/config"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

const seedJSON = `{
	"users": [{"id": "u1", "interest_tags": ["hiking"], "location": {"lat": 52.52, "lng": 13.405}, "max_travel_mins": 60}],
	"opportunities": [{"id": "hike", "title": "Hike", "capacity": 4, "tags": ["hiking"],
		"window": {"start": "2026-05-03T10:00:00Z", "end": "2026-05-03T13:00:00Z"},
		"location": {"lat": 52.52, "lng": 13.405}}]
}`

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("FLOK_ADDR", ":8080")
			t.Setenv("FLOK_QUEUE_SIZE", "1000")
			t.Setenv("FLOK_WORKER_COUNT", "4")
			t.Setenv("FLOK_SOLVER", "greedy")

			convey.Convey("Then the values should be applied", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Solver, convey.ShouldEqual, config.SolverGreedy)
			})
		})

		convey.Convey("When building the service from defaults", func() {
			cfg := config.New(context.Background())
			svc, err := newService(cfg, logger.Nop())

			convey.Convey("Then it should reflect the configuration", func() {
				convey.So(err, convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["workerCount"], convey.ShouldEqual, cfg.WorkerCount)
				convey.So(stats["queueSize"], convey.ShouldEqual, cfg.QueueSize)
				convey.So(stats["decayTauHours"], convey.ShouldEqual, 12.0)
			})
		})

		convey.Convey("When the solver is unknown", func() {
			cfg := config.New(context.Background())
			cfg.Solver = "hungarian"
			_, err := newService(cfg, logger.Nop())

			convey.Convey("Then building should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When metrics managers are created on their own registries", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))

			convey.Convey("Then they should be usable", func() {
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestSeedService(t *testing.T) {
	convey.Convey("Given a running service", t, func() {
		cfg := config.New(context.Background())
		cfg.WorkerCount = 1
		svc, err := newService(cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		ctx := context.Background()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When a seed file is applied", func() {
			path := filepath.Join(t.TempDir(), "seed.json")
			convey.So(os.WriteFile(path, []byte(seedJSON), 0o600), convey.ShouldBeNil)
			err := seedService(ctx, svc, path)

			convey.Convey("Then its records should be served", func() {
				convey.So(err, convey.ShouldBeNil)
				h := api.NewServer(svc).Router()
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opportunities/hike/pulse", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the seed file is missing", func() {
			err := seedService(ctx, svc, filepath.Join(t.TempDir(), "missing.json"))

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then it should return without panicking", func() {
				convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the service metrics updater runs until its context ends", func() {
			svc := app.New()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then it should return without panicking", func() {
				convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When updating metrics directly", func() {
			svc := app.New()

			convey.Convey("Then neither update should panic", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the listen address is empty", func() {
			t.Setenv("FLOK_ADDR", "")

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the service is built with extreme values", func() {
			svc := app.New(
				app.WithWorkerCount(0),
				app.WithQueueSize(0),
				app.WithDedupeSize(0),
			)

			convey.Convey("Then it should fall back to defaults", func() {
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.GetStats()["workerCount"], convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
