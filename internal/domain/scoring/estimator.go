// Package scoring estimates how likely a user is to RSVP to an opportunity.
package scoring

import (
	"math"

	"github.com/okian/flok/internal/domain/geo"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/internal/domain/pulse"
)

// Input is everything the estimator needs about one pair.
type Input struct {
	User        *model.User
	Opportunity *model.Opportunity
	// Pulse of the opportunity at request time.
	Pulse float64
	// Seen is true when the user has any logged interaction with it.
	Seen bool
}

// Fit is an RSVP probability with the features that produced it. Raw is
// the model output before the newcomer boost.
type Fit struct {
	Score    float64  `json:"score"`
	Raw      float64  `json:"raw"`
	Features Features `json:"features"`
	Boosted  bool     `json:"boosted,omitempty"`
}

// Estimator computes fit scores. It is immutable and safe for concurrent use.
type Estimator struct {
	model         Model
	pulse         pulse.Transform
	minutesPerKm  float64
	newcomerBoost float64
}

// NewEstimator creates an estimator with configuration options.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		model:        Neutral(),
		pulse:        pulse.New(pulse.DefaultLiquidity),
		minutesPerKm: geo.DefaultMinutesPerKm,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model in use.
func (e *Estimator) Model() Model { return e.model }

// Pulse returns the transform in use.
func (e *Estimator) Pulse() pulse.Transform { return e.pulse }

// MinutesPerKm returns the travel-time rate.
func (e *Estimator) MinutesPerKm() float64 { return e.minutesPerKm }

// Features computes the feature vector for a pair.
func (e *Estimator) Features(in Input) Features {
	u, o := in.User, in.Opportunity
	minutes := geo.TravelMinutes(u.Location, o.Location, e.minutesPerKm)
	f := Features{
		Interest:          InterestJaccard(u.InterestTags, o.Tags),
		GoalMatch:         GoalMatch(u.Goal, o.Category, o.Tags),
		GroupMatch:        GroupMatch(u.GroupPref, o.GroupSize),
		TravelMinutes:     minutes,
		TravelPenalty:     TravelPenalty(minutes, u.MaxTravelMins),
		IntensityMismatch: IntensityMismatch(u.IntensityPref, o.Intensity),
		Novelty:           1,
		PulseCentered:     pulse.Centered(in.Pulse),
	}
	if in.Seen {
		f.Novelty = 0
	}
	if u.AvailableFor(o.Window) {
		f.Availability = 1
	}
	return f
}

// Estimate returns the fit of a pair.
func (e *Estimator) Estimate(in Input) Fit {
	f := e.Features(in)
	p := e.model.Predict(f)
	fit := Fit{Score: p, Raw: p, Features: f}
	if e.newcomerBoost > 0 && in.User.Newcomer() && in.Opportunity.BeginnerFriendly {
		fit.Score = math.Min(1, fit.Score*(1+e.newcomerBoost))
		fit.Boosted = true
	}
	return fit
}
