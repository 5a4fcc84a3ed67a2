// Package config defines service configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"
)

// Solver names.
const (
	SolverMinCostFlow = "mincostflow"
	SolverGreedy      = "greedy"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory interaction queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds how many interaction ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount sets the number of lock shards in the demand ledger.
	ShardCount int `koanf:"shard_count"`

	// DecayTauHours is τ, the e-folding time of demand.
	DecayTauHours float64 `koanf:"decay_tau_hours"`

	// LiquidityK is k in L = k·max(1, capacity).
	LiquidityK float64 `koanf:"liquidity_k"`

	// ScarcityLambda is λ in S_adj = S_ml − λ·(pulse − 50).
	ScarcityLambda float64 `koanf:"scarcity_lambda"`

	// FairnessLambda weighs the cohort boost when a rebalance asks for it.
	FairnessLambda float64 `koanf:"fairness_lambda"`

	// NewcomerBoost scales fit for newcomers on beginner-friendly meetups.
	NewcomerBoost float64 `koanf:"newcomer_boost"`

	// MinutesPerKm converts distance to travel time.
	MinutesPerKm float64 `koanf:"minutes_per_km"`

	// ModelPath points at the fit model artifact; empty means neutral.
	ModelPath string `koanf:"model_path"`

	// Solver selects the assignment solver: mincostflow or greedy.
	Solver string `koanf:"solver"`

	// AuditDir stores the interaction log; empty keeps it in memory.
	AuditDir string `koanf:"audit_dir"`

	// SeedPath optionally preloads users and opportunities.
	SeedPath string `koanf:"seed_path"`

	// MaxFeedLimit caps ?limit on feed and trending.
	MaxFeedLimit int `koanf:"max_feed_limit"`

	// HistorySize bounds the pulse samples kept per opportunity.
	HistorySize int `koanf:"history_size"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU() * 2,
		DedupeSize:     100_000,
		ShardCount:     64,
		DecayTauHours:  12,
		LiquidityK:     5,
		ScarcityLambda: 1,
		FairnessLambda: 0.5,
		NewcomerBoost:  0,
		MinutesPerKm:   3,
		Solver:         SolverMinCostFlow,
		MaxFeedLimit:   100,
		HistorySize:    50,
	}
}

// DecayTau returns τ as a duration.
func (c *Config) DecayTau() time.Duration {
	return time.Duration(c.DecayTauHours * float64(time.Hour))
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case !finite(c.DecayTauHours) || c.DecayTauHours <= 0:
		return fmt.Errorf("%w: decay_tau_hours must be positive", ErrInvalidConfig)
	case !finite(c.LiquidityK) || c.LiquidityK <= 0:
		return fmt.Errorf("%w: liquidity_k must be positive", ErrInvalidConfig)
	case !finite(c.ScarcityLambda) || c.ScarcityLambda < 0:
		return fmt.Errorf("%w: scarcity_lambda must not be negative", ErrInvalidConfig)
	case !finite(c.FairnessLambda) || c.FairnessLambda < 0:
		return fmt.Errorf("%w: fairness_lambda must not be negative", ErrInvalidConfig)
	case !finite(c.NewcomerBoost) || c.NewcomerBoost < 0:
		return fmt.Errorf("%w: newcomer_boost must not be negative", ErrInvalidConfig)
	case !finite(c.MinutesPerKm) || c.MinutesPerKm <= 0:
		return fmt.Errorf("%w: minutes_per_km must be positive", ErrInvalidConfig)
	case c.MaxFeedLimit <= 0:
		return fmt.Errorf("%w: max_feed_limit must be positive", ErrInvalidConfig)
	case c.HistorySize <= 0:
		return fmt.Errorf("%w: history_size must be positive", ErrInvalidConfig)
	}
	switch c.Solver {
	case SolverMinCostFlow, SolverGreedy:
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrInvalidConfig, c.Solver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
