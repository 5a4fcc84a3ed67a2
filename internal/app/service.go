// Package service provides the matching core behind the HTTP API: demand
// ingestion, pulse, personalized ranking and batch rebalancing.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/flok/internal/adapters/audit"
	eventqueue "github.com/okian/flok/internal/adapters/mq/queue"
	workerpool "github.com/okian/flok/internal/adapters/mq/worker"
	"github.com/okian/flok/internal/adapters/repository"
	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/dedupe"
	"github.com/okian/flok/internal/domain/eligibility"
	"github.com/okian/flok/internal/domain/fairness"
	"github.com/okian/flok/internal/domain/geo"
	"github.com/okian/flok/internal/domain/ledger"
	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/internal/domain/ranking"
	"github.com/okian/flok/internal/domain/scoring"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

const (
	defaultQueueSize    = 10_000
	defaultDedupeSize   = 100_000
	defaultShardCount   = 64
	defaultMaxFeedLimit = 100
	defaultFeedLimit    = 20
	shutdownTimeout     = 10 * time.Second
)

// Service implements the API dependencies for the matching core.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ledger    *ledger.Ledger
	deduper   dedupe.Deduper
	estimator *scoring.Estimator
	filter    eligibility.Filter
	ranker    ranking.Ranker
	solver    assign.Solver
	history   *pulse.History

	// Runtime components, rebuilt on every Start.
	auditLog   audit.Log
	ownsAudit  bool
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	cancel     context.CancelFunc

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	shardCount     int
	tau            time.Duration
	liquidity      float64
	scarcityLambda float64
	fairnessLambda float64
	newcomerBoost  float64
	minutesPerKm   float64
	model          *scoring.Model
	modelPath      string
	auditDir       string
	injectedAudit  audit.Log
	maxFeedLimit   int
	historySize    int
	now            func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a Service. Domain components are ready immediately;
// Start opens the interaction log and the ingestion pipeline.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		shardCount:     defaultShardCount,
		tau:            ledger.DefaultDecayTimescale,
		liquidity:      pulse.DefaultLiquidity,
		scarcityLambda: ranking.DefaultLambda,
		fairnessLambda: fairness.DefaultLambda,
		minutesPerKm:   geo.DefaultMinutesPerKm,
		maxFeedLimit:   defaultMaxFeedLimit,
		now:            time.Now,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.solver == nil {
		s.solver = assign.NewMinCostFlow()
	}
	m := scoring.Neutral()
	switch {
	case s.model != nil:
		m = *s.model
	case s.modelPath != "":
		m = scoring.ResolveModel(context.Background(), s.modelPath, s.logger)
	}

	s.ledger = ledger.New(
		ledger.WithDecayTimescale(s.tau),
		ledger.WithShardCount(s.shardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.estimator = scoring.NewEstimator(
		scoring.WithModel(m),
		scoring.WithPulse(pulse.New(s.liquidity)),
		scoring.WithMinutesPerKm(s.minutesPerKm),
		scoring.WithNewcomerBoost(s.newcomerBoost),
	)
	s.filter = eligibility.New(s.minutesPerKm)
	s.ranker = ranking.New(s.scarcityLambda)
	s.history = pulse.NewHistory(s.historySize)
	return s
}

// Start opens the interaction log and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting matching service...")

	if s.injectedAudit != nil {
		s.auditLog, s.ownsAudit = s.injectedAudit, false
	} else {
		l, err := audit.Open(s.auditDir)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.auditLog, s.ownsAudit = l, true
	}

	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s, s.logger)

	// Workers outlive the Start ctx; Stop cancels them after draining.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "matching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("model", s.estimator.Model().Version()),
	)
	return nil
}

// Stop drains the queue, stops the workers and closes the interaction log.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, cancel, log, owns := s.workerPool, s.cancel, s.auditLog, s.ownsAudit
	s.mu.Unlock()

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	s.logger.Info(ctx, "stopping matching service...")

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	cancel()

	if owns {
		if err := log.Close(); err != nil {
			s.logger.Error(ctx, "error closing interaction log", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "matching service stopped")
}

// running returns the interaction log when the service is started.
func (s *Service) running() (audit.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.auditLog, nil
}

// interactionLog returns the current log even while stopping, so that
// workers can drain the queue.
func (s *Service) interactionLog() audit.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditLog
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	users, opps := s.store.Count(ctx)
	stats := map[string]interface{}{
		"started":              s.started,
		"workerCount":          s.workerCount,
		"queueSize":            s.queueSize,
		"dedupeSize":           s.dedupeSize,
		"dedupeEntries":        s.deduper.Size(),
		"users":                users,
		"opportunities":        opps,
		"trackedOpportunities": s.ledger.Len(),
		"model":                s.estimator.Model().Version(),
		"decayTauHours":        s.tau.Hours(),
		"liquidityK":           s.liquidity,
		"scarcityLambda":       s.ranker.Lambda(),
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		if n, err := s.auditLog.Count(ctx); err == nil {
			stats["interactionsLogged"] = n
		}
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedOpportunities(s.ledger.Len())
	}

	return stats
}

// Ledger exposes the demand ledger.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// MaxFeedLimit returns the cap on feed and trending sizes.
func (s *Service) MaxFeedLimit() int { return s.maxFeedLimit }
