package service

import (
	"time"

	"github.com/okian/flok/internal/adapters/audit"
	"github.com/okian/flok/internal/adapters/repository"
	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/scoring"
	"github.com/okian/flok/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the interaction queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many interaction ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the number of demand ledger lock shards.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDecayTimescale sets τ, the e-folding time of demand.
func WithDecayTimescale(tau time.Duration) Option {
	return func(s *Service) {
		if tau > 0 {
			s.tau = tau
		}
	}
}

// WithLiquidity sets k in the pulse transform.
func WithLiquidity(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.liquidity = k
		}
	}
}

// WithScarcityLambda sets the ranking scarcity weight.
func WithScarcityLambda(lambda float64) Option {
	return func(s *Service) {
		if lambda >= 0 {
			s.scarcityLambda = lambda
		}
	}
}

// WithFairnessLambda sets the weight of the cohort boost in rebalances.
func WithFairnessLambda(lambda float64) Option {
	return func(s *Service) {
		if lambda >= 0 {
			s.fairnessLambda = lambda
		}
	}
}

// WithNewcomerBoost sets the newcomer fit boost.
func WithNewcomerBoost(boost float64) Option {
	return func(s *Service) {
		if boost >= 0 {
			s.newcomerBoost = boost
		}
	}
}

// WithMinutesPerKm sets the travel-time rate.
func WithMinutesPerKm(rate float64) Option {
	return func(s *Service) {
		if rate > 0 {
			s.minutesPerKm = rate
		}
	}
}

// WithModel sets the fit model directly.
func WithModel(m scoring.Model) Option {
	return func(s *Service) {
		s.model = &m
	}
}

// WithModelPath loads the fit model artifact on New. A missing or
// malformed artifact falls back to the neutral model.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithSolver sets the assignment solver.
func WithSolver(solver assign.Solver) Option {
	return func(s *Service) {
		if solver != nil {
			s.solver = solver
		}
	}
}

// WithStore sets the directory and booking store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithAuditDir stores the interaction log on disk under dir.
func WithAuditDir(dir string) Option {
	return func(s *Service) {
		s.auditDir = dir
	}
}

// WithAuditLog sets an interaction log owned by the caller. The service
// does not close it.
func WithAuditLog(l audit.Log) Option {
	return func(s *Service) {
		s.injectedAudit = l
	}
}

// WithMaxFeedLimit caps feed and trending sizes.
func WithMaxFeedLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFeedLimit = n
		}
	}
}

// WithHistorySize bounds the pulse samples kept per opportunity.
func WithHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
