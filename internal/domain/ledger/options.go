package ledger

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithDecayTimescale sets τ, the e-folding time of demand.
func WithDecayTimescale(tau time.Duration) Option {
	return func(l *Ledger) {
		if tau > 0 {
			l.tau = tau
		}
	}
}

// WithShardCount sets how many lock shards the ledger spreads ids across.
func WithShardCount(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.shardCount = n
		}
	}
}
