package scoring

import "github.com/okian/flok/internal/domain/pulse"

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithModel sets the fit model.
func WithModel(m Model) Option {
	return func(e *Estimator) {
		e.model = m
	}
}

// WithPulse sets the demand-to-pulse transform.
func WithPulse(t pulse.Transform) Option {
	return func(e *Estimator) {
		e.pulse = t
	}
}

// WithMinutesPerKm sets the travel-time rate.
func WithMinutesPerKm(rate float64) Option {
	return func(e *Estimator) {
		if rate > 0 {
			e.minutesPerKm = rate
		}
	}
}

// WithNewcomerBoost scales fit for newcomers on beginner-friendly meetups.
func WithNewcomerBoost(boost float64) Option {
	return func(e *Estimator) {
		if boost > 0 {
			e.newcomerBoost = boost
		}
	}
}
