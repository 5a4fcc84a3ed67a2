package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/flok/internal/adapters/http/api"
	"github.com/okian/flok/internal/adapters/repository"
	app "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/config"
	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Our registry carries its own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger is not available yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	if cfg.SeedPath != "" {
		if err := seedService(ctx, svc, cfg.SeedPath); err != nil {
			// Valid records are kept; report the rest and keep serving.
			log.Warn(ctx, "seed applied with errors", logger.String("path", cfg.SeedPath), logger.Error(err))
		} else {
			log.Info(ctx, "seed applied", logger.String("path", cfg.SeedPath))
		}
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc).Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// newService maps configuration onto service options.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	solver, err := assign.ForName(cfg.Solver)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithShardCount(cfg.ShardCount),
		app.WithDecayTimescale(cfg.DecayTau()),
		app.WithLiquidity(cfg.LiquidityK),
		app.WithScarcityLambda(cfg.ScarcityLambda),
		app.WithFairnessLambda(cfg.FairnessLambda),
		app.WithNewcomerBoost(cfg.NewcomerBoost),
		app.WithMinutesPerKm(cfg.MinutesPerKm),
		app.WithModelPath(cfg.ModelPath),
		app.WithSolver(solver),
		app.WithAuditDir(cfg.AuditDir),
		app.WithMaxFeedLimit(cfg.MaxFeedLimit),
		app.WithHistorySize(cfg.HistorySize),
	), nil
}

// seedService loads a fixture file into a running service.
func seedService(ctx context.Context, svc *app.Service, path string) error {
	seed, err := repository.LoadSeed(path)
	if err != nil {
		return err
	}
	return svc.Seed(ctx, seed)
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies service stats into gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if tracked, ok := stats["trackedOpportunities"].(int); ok {
		metrics.UpdateTrackedOpportunities(tracked)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
