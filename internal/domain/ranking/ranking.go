// Package ranking orders a user's candidate opportunities by fit adjusted
// for scarcity, eligible items first.
package ranking

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/okian/flok/internal/domain/eligibility"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/internal/domain/scoring"
)

// DefaultLambda is the scarcity penalty per pulse point above neutral.
const DefaultLambda = 1.0

// Reason chips shown next to eligible items.
const (
	ChipInterests = "shares your interests"
	ChipGoal      = "matches your goal"
	ChipClose     = "close to you"
	ChipSchedule  = "fits your schedule"
	ChipGroupSize = "good group size"
	ChipIntensity = "comfortable intensity"
	ChipNew       = "something new"
	ChipBeginner  = "beginner-friendly for newcomers"
)

// Candidate is one scored opportunity before ordering.
type Candidate struct {
	Opportunity *model.Opportunity
	Pulse       float64
	Fit         scoring.Fit
	Eligibility eligibility.Result
}

// Item is one entry of a ranked list. Fit and Adjusted are only set for
// eligible items.
type Item struct {
	OpportunityID string               `json:"opportunity_id"`
	Title         string               `json:"title,omitempty"`
	Start         time.Time            `json:"start"`
	SeatsLeft     int                  `json:"seats_left"`
	Pulse         float64              `json:"pulse"`
	Eligible      bool                 `json:"eligible"`
	Fit           *float64             `json:"fit,omitempty"`
	Adjusted      *float64             `json:"adjusted,omitempty"`
	Chips         []string             `json:"chips,omitempty"`
	Reasons       []eligibility.Reason `json:"reasons,omitempty"`
}

// Explanation breaks one pair's score into its parts:
// Score = FitRaw + NewcomerBoost + PriceAdjustment + FairnessBoost.
type Explanation struct {
	UserID          string               `json:"user_id"`
	OpportunityID   string               `json:"opportunity_id"`
	Eligible        bool                 `json:"eligible"`
	Reasons         []eligibility.Reason `json:"reasons,omitempty"`
	Pulse           float64              `json:"pulse"`
	Features        scoring.Features     `json:"features"`
	FitRaw          float64              `json:"s_ml_raw"`
	NewcomerBoost   float64              `json:"newcomer_boost"`
	PriceAdjustment float64              `json:"price_adjustment"`
	FairnessBoost   float64              `json:"fairness_boost"`
	Score           float64              `json:"final_score"`
	Chips           []string             `json:"chips,omitempty"`
}

// Ranker applies the scarcity adjustment and the ordering policy.
type Ranker struct {
	lambda float64
}

// New returns a ranker; a negative or non-finite lambda uses DefaultLambda.
func New(lambda float64) Ranker {
	if lambda < 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		lambda = DefaultLambda
	}
	return Ranker{lambda: lambda}
}

// Lambda returns the scarcity penalty weight.
func (r Ranker) Lambda() float64 { return r.lambda }

// Adjust returns fit − λ·(pulse − 50).
func (r Ranker) Adjust(fit, p float64) float64 {
	return fit - r.lambda*(p-pulse.Neutral)
}

// Explain breaks down the score of a candidate for u. fairness is the
// already weighted cohort boost, zero outside fairness rounds. Ineligible
// candidates are explained too and carry their reasons.
func (r Ranker) Explain(u *model.User, c Candidate, fairness float64) Explanation {
	o := c.Opportunity
	e := Explanation{
		UserID:          u.ID,
		OpportunityID:   o.ID,
		Eligible:        c.Eligibility.Eligible,
		Reasons:         c.Eligibility.Reasons,
		Pulse:           c.Pulse,
		Features:        c.Fit.Features,
		FitRaw:          c.Fit.Raw,
		NewcomerBoost:   c.Fit.Score - c.Fit.Raw,
		PriceAdjustment: r.Adjust(0, c.Pulse),
		FairnessBoost:   fairness,
	}
	e.Score = r.Adjust(c.Fit.Score, c.Pulse) + fairness
	if e.Eligible {
		e.Chips = Chips(u, o, c.Fit.Features)
	}
	return e
}

// Rank orders candidates: eligible by adjusted score desc, soonest start,
// then id; ineligible after them by soonest start, then id.
func (r Ranker) Rank(u *model.User, cands []Candidate) []Item {
	items := make([]Item, 0, len(cands))
	for _, c := range cands {
		o := c.Opportunity
		it := Item{
			OpportunityID: o.ID,
			Title:         o.Title,
			Start:         o.Window.Start,
			SeatsLeft:     o.SeatsLeft(),
			Pulse:         c.Pulse,
			Eligible:      c.Eligibility.Eligible,
		}
		if it.Eligible {
			fit := c.Fit.Score
			adj := r.Adjust(fit, c.Pulse)
			it.Fit = &fit
			it.Adjusted = &adj
			it.Chips = Chips(u, o, c.Fit.Features)
		} else {
			it.Reasons = c.Eligibility.Reasons
		}
		items = append(items, it)
	}
	slices.SortFunc(items, compare)
	return items
}

func compare(a, b Item) int {
	if a.Eligible != b.Eligible {
		if a.Eligible {
			return -1
		}
		return 1
	}
	if a.Eligible {
		if c := cmp.Compare(*b.Adjusted, *a.Adjusted); c != 0 {
			return c
		}
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.OpportunityID, b.OpportunityID)
}

// Chips explains an eligible item from its features.
func Chips(u *model.User, o *model.Opportunity, f scoring.Features) []string {
	var chips []string
	if f.Interest >= 0.5 {
		chips = append(chips, ChipInterests)
	}
	if f.GoalMatch >= 1 {
		chips = append(chips, ChipGoal)
	}
	if f.TravelPenalty <= 0.3 {
		chips = append(chips, ChipClose)
	}
	if f.Availability >= 1 {
		chips = append(chips, ChipSchedule)
	}
	if f.GroupMatch >= 0.7 {
		chips = append(chips, ChipGroupSize)
	}
	if f.IntensityMismatch <= 0.2 {
		chips = append(chips, ChipIntensity)
	}
	if f.Novelty >= 1 {
		chips = append(chips, ChipNew)
	}
	if u.Newcomer() && o.BeginnerFriendly {
		chips = append(chips, ChipBeginner)
	}
	return chips
}
