package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/okian/flok/internal/adapters/audit"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/internal/domain/ranking"
	"github.com/okian/flok/internal/domain/scoring"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

// TrendingItem is one entry of the trending list. PulseDelta is the move
// since the last recorded pulse sample.
type TrendingItem struct {
	OpportunityID string  `json:"opportunity_id"`
	Title         string  `json:"title,omitempty"`
	Pulse         float64 `json:"pulse"`
	PulseDelta    float64 `json:"pulse_delta"`
	Demand        float64 `json:"demand"`
	SeatsLeft     int     `json:"seats_left"`
}

// OpportunityView is an opportunity with its live demand figures.
type OpportunityView struct {
	model.Opportunity
	Pulse     float64        `json:"pulse"`
	Demand    float64        `json:"demand"`
	SeatsLeft int            `json:"seats_left"`
	History   []pulse.Sample `json:"pulse_history,omitempty"`
}

// pulseOf returns the pulse of o at t.
func (s *Service) pulseOf(o *model.Opportunity, t time.Time) float64 {
	return s.estimator.Pulse().Of(s.ledger.DemandAt(o.ID, t), o.Capacity)
}

// Pulse returns the current demand pressure of an opportunity in [0, 100].
func (s *Service) Pulse(ctx context.Context, opportunityID string) (float64, error) {
	o, err := s.store.Opportunity(ctx, opportunityID)
	if err != nil {
		return 0, err
	}
	return s.pulseOf(&o, s.now()), nil
}

// pulseDelta returns p minus the last recorded sample of id, or zero.
func (s *Service) pulseDelta(id string, p float64) float64 {
	last, ok := s.history.Last(id)
	if !ok {
		return 0
	}
	return p - last.Pulse
}

// OpportunityDetail returns an opportunity with its pulse, and the recorded
// pulse samples when withHistory is set.
func (s *Service) OpportunityDetail(ctx context.Context, id string, withHistory bool) (OpportunityView, error) {
	o, err := s.store.Opportunity(ctx, id)
	if err != nil {
		return OpportunityView{}, err
	}
	now := s.now()
	v := OpportunityView{
		Opportunity: o,
		Pulse:       s.pulseOf(&o, now),
		Demand:      s.ledger.DemandAt(o.ID, now),
		SeatsLeft:   o.SeatsLeft(),
	}
	if withHistory {
		v.History = s.history.Samples(o.ID)
	}
	return v, nil
}

// seenBy returns the opportunities the user interacted with. A log failure
// degrades to treating everything as new.
func (s *Service) seenBy(ctx context.Context, l audit.Log, userID string) map[string]bool {
	seen, err := l.SeenBy(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "interaction log unavailable, novelty disabled",
			logger.String("user", userID),
			logger.Error(err),
		)
		return nil
	}
	return seen
}

// candidate scores one pair for ranking.
func (s *Service) candidate(u *model.User, o *model.Opportunity, seen map[string]bool, t time.Time) ranking.Candidate {
	p := s.pulseOf(o, t)
	return ranking.Candidate{
		Opportunity: o,
		Pulse:       p,
		Fit:         s.estimator.Estimate(scoring.Input{User: u, Opportunity: o, Pulse: p, Seen: seen[o.ID]}),
		Eligibility: s.filter.Check(u, o),
	}
}

// Explain breaks down the score of one pair. Ineligible pairs are
// explained with their reasons.
func (s *Service) Explain(ctx context.Context, opportunityID, userID string) (ranking.Explanation, error) {
	l, err := s.running()
	if err != nil {
		return ranking.Explanation{}, err
	}
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return ranking.Explanation{}, err
	}
	o, err := s.store.Opportunity(ctx, opportunityID)
	if err != nil {
		return ranking.Explanation{}, err
	}
	seen := s.seenBy(ctx, l, u.ID)
	return s.ranker.Explain(&u, s.candidate(&u, &o, seen, s.now()), 0), nil
}

// RankForUser orders candidate opportunities for a user. No candidates
// means every opportunity. Unknown ids fail with model.ErrNotFound.
func (s *Service) RankForUser(ctx context.Context, userID string, candidateIDs []string) ([]ranking.Item, error) {
	l, err := s.running()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordRankLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	u, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	opps, err := s.opportunities(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seen := s.seenBy(ctx, l, u.ID)
	cands := make([]ranking.Candidate, 0, len(opps))
	for i := range opps {
		c := s.candidate(&u, &opps[i], seen, now)
		for _, r := range c.Eligibility.Reasons {
			metrics.RecordIneligible(string(r.Code))
		}
		cands = append(cands, c)
	}
	return s.ranker.Rank(&u, cands), nil
}

// opportunities resolves ids in order, skipping repeats; none means all.
func (s *Service) opportunities(ctx context.Context, ids []string) ([]model.Opportunity, error) {
	if len(ids) == 0 {
		return s.store.Opportunities(ctx), nil
	}
	out := make([]model.Opportunity, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		o, err := s.store.Opportunity(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// clampLimit maps a requested size onto [1, maxFeedLimit].
func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	return min(limit, s.maxFeedLimit)
}

// Feed returns the top of the user's ranking and records a shown
// interaction for each eligible item returned.
func (s *Service) Feed(ctx context.Context, userID string, limit int) ([]ranking.Item, error) {
	items, err := s.RankForUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	items = items[:min(len(items), s.clampLimit(limit))]
	for _, it := range items {
		if it.Eligible {
			s.record(ctx, userID, it.OpportunityID, model.KindShown)
		}
	}
	return items, nil
}

// Trending lists opportunities by pulse, hottest first.
func (s *Service) Trending(ctx context.Context, limit int) []TrendingItem {
	now := s.now()
	opps := s.store.Opportunities(ctx)
	out := make([]TrendingItem, 0, len(opps))
	for i := range opps {
		o := &opps[i]
		p := s.pulseOf(o, now)
		out = append(out, TrendingItem{
			OpportunityID: o.ID,
			Title:         o.Title,
			Pulse:         p,
			PulseDelta:    s.pulseDelta(o.ID, p),
			Demand:        s.ledger.DemandAt(o.ID, now),
			SeatsLeft:     o.SeatsLeft(),
		})
	}
	slices.SortFunc(out, func(a, b TrendingItem) int {
		if c := cmp.Compare(b.Pulse, a.Pulse); c != 0 {
			return c
		}
		return cmp.Compare(a.OpportunityID, b.OpportunityID)
	})
	return out[:min(len(out), s.clampLimit(limit))]
}
