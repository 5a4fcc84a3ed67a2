package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/flok/internal/adapters/audit"
	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/fairness"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/internal/domain/ranking"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

const (
	defaultTopK   = 3
	topPulseMoves = 3
)

// Grant rejection reasons.
const (
	RejectFull          = "full"
	RejectNotFound      = "not_found"
	RejectDuplicateUser = "duplicate_user"
	RejectSeated        = "already_seated"
	RejectError         = "error"
)

// RebalanceRequest selects who and what to allocate. Empty id lists mean
// every user or every opportunity.
type RebalanceRequest struct {
	UserIDs        []string `json:"user_ids"`
	OpportunityIDs []string `json:"opportunity_ids"`
	// Fairness boosts edges of under-exposed cohorts and solves again.
	Fairness bool `json:"fairness"`
	// Commit books the resulting seats.
	Commit bool `json:"commit"`
	// TopK is the number of alternatives per user; zero uses three.
	TopK int `json:"top_k"`
}

// RebalanceResult is the outcome of one allocation round.
type RebalanceResult struct {
	Assignments     []assign.Assignment              `json:"assignments"`
	Unassigned      []string                         `json:"unassigned"`
	Seated          map[string]string                `json:"seated"`
	Recommendations map[string]assign.Recommendation `json:"recommendations"`
	Summary         fairness.Summary                 `json:"summary"`
	Total           float64                          `json:"total"`
	Commit          *CommitResult                    `json:"commit,omitempty"`
	// Explanations breaks down each final assignment, keyed by user id.
	Explanations map[string]ranking.Explanation `json:"explanations"`
	// PriceDeltas is the pulse move of each in-round opportunity since the
	// previous round that saw it.
	PriceDeltas    map[string]float64 `json:"price_deltas"`
	TopPulseMovers []TrendingItem     `json:"top_pulse_movers"`
}

// Rejection is a grant refused at commit time.
type Rejection struct {
	UserID        string `json:"user_id"`
	OpportunityID string `json:"opportunity_id"`
	Reason        string `json:"reason"`
}

// CommitResult splits a batch of grants into booked and refused.
type CommitResult struct {
	Granted  []assign.Assignment `json:"granted"`
	Rejected []Rejection         `json:"rejected"`
}

// Rebalance computes a capacity-feasible assignment that maximizes total
// scarcity-adjusted fit over a point-in-time snapshot. Users already
// holding a seat on any opportunity are reported as seated and left out of
// the problem.
func (s *Service) Rebalance(ctx context.Context, req RebalanceRequest) (RebalanceResult, error) {
	l, err := s.running()
	if err != nil {
		return RebalanceResult{}, err
	}
	start := time.Now()

	users, err := s.users(ctx, req.UserIDs)
	if err != nil {
		return RebalanceResult{}, err
	}
	opps, err := s.opportunities(ctx, req.OpportunityIDs)
	if err != nil {
		return RebalanceResult{}, err
	}

	now := s.now()
	capacities := make(map[string]int, len(opps))
	for i := range opps {
		capacities[opps[i].ID] = opps[i].SeatsLeft()
	}
	deltas, movers := s.recordPulses(opps, now)
	// Seats held outside the round still count.
	seated := s.seatHolders(ctx)
	cands := make([]model.User, 0, len(users))
	for _, u := range users {
		if _, ok := seated[u.ID]; !ok {
			cands = append(cands, u)
		}
	}
	inScope := make(map[string]bool, len(users))
	for _, u := range users {
		inScope[u.ID] = true
	}
	for u := range seated {
		if !inScope[u] {
			delete(seated, u)
		}
	}

	edges, err := s.edges(ctx, l, cands, opps, now)
	if err != nil {
		return RebalanceResult{}, err
	}
	ids := make([]string, len(cands))
	for i, u := range cands {
		ids[i] = u.ID
	}

	p, res, err := s.solve(ctx, ids, capacities, edges)
	if err != nil {
		return RebalanceResult{}, err
	}
	boosts := make(map[string]float64)
	if req.Fairness && s.fairnessLambda > 0 {
		rates := fairness.ExposureRates(cands, res.Assignments)
		for _, u := range cands {
			boosts[u.ID] = s.fairnessLambda * fairness.Boost(u.Cohort, rates)
		}
		for i := range edges {
			edges[i].Score += boosts[edges[i].UserID]
		}
		if p, res, err = s.solve(ctx, ids, capacities, edges); err != nil {
			return RebalanceResult{}, err
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	out := RebalanceResult{
		Assignments:     res.Assignments,
		Unassigned:      res.Unassigned,
		Seated:          seated,
		Recommendations: assign.Recommend(p, res, topK),
		Total:           res.Total,
		PriceDeltas:     deltas,
		TopPulseMovers:  movers,
		// Booking moves demand, so explain against the solved snapshot.
		Explanations: s.explainAssignments(ctx, l, cands, opps, res.Assignments, boosts, now),
	}

	if req.Commit {
		cr := s.Commit(ctx, res.Assignments)
		out.Commit = &cr
		out.Assignments = cr.Granted
		out.Total = 0
		for _, a := range cr.Granted {
			out.Total += a.Score
		}
		for _, r := range cr.Rejected {
			out.Unassigned = append(out.Unassigned, r.UserID)
			delete(out.Explanations, r.UserID)
		}
		slices.Sort(out.Unassigned)
	}
	out.Summary = fairness.Summarize(cands, capacities, out.Assignments)
	categoryOf := make(map[string]string, len(opps))
	for i := range opps {
		categoryOf[opps[i].ID] = opps[i].Category
	}
	out.Summary.AvgDiversity = fairness.Diversity(out.Recommendations, categoryOf)

	durMs := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordRebalance(durMs, len(out.Assignments), len(out.Unassigned))
	s.logger.Info(ctx, "rebalance complete",
		logger.Int("users", len(cands)),
		logger.Int("opportunities", len(opps)),
		logger.Int("assigned", len(out.Assignments)),
		logger.Int("unassigned", len(out.Unassigned)),
		logger.Float64("durationMs", durMs),
	)
	return out, nil
}

// recordPulses samples the pulse of each opportunity into the history and
// returns the moves since the previous samples with the largest movers.
func (s *Service) recordPulses(opps []model.Opportunity, now time.Time) (map[string]float64, []TrendingItem) {
	deltas := make(map[string]float64, len(opps))
	movers := make([]TrendingItem, 0, len(opps))
	for i := range opps {
		o := &opps[i]
		p := s.pulseOf(o, now)
		var d float64
		if prev, ok := s.history.Record(o.ID, pulse.Sample{At: now, Pulse: p}); ok {
			d = p - prev.Pulse
		}
		deltas[o.ID] = d
		movers = append(movers, TrendingItem{
			OpportunityID: o.ID,
			Title:         o.Title,
			Pulse:         p,
			PulseDelta:    d,
			Demand:        s.ledger.DemandAt(o.ID, now),
			SeatsLeft:     o.SeatsLeft(),
		})
	}
	slices.SortFunc(movers, func(a, b TrendingItem) int {
		if c := cmp.Compare(math.Abs(b.PulseDelta), math.Abs(a.PulseDelta)); c != 0 {
			return c
		}
		return strings.Compare(a.OpportunityID, b.OpportunityID)
	})
	if len(movers) > topPulseMoves {
		movers = movers[:topPulseMoves]
	}
	return deltas, movers
}

// explainAssignments breaks down the final score of each assignment.
func (s *Service) explainAssignments(ctx context.Context, l audit.Log, users []model.User, opps []model.Opportunity,
	assignments []assign.Assignment, boosts map[string]float64, now time.Time,
) map[string]ranking.Explanation {
	userByID := make(map[string]*model.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}
	oppByID := make(map[string]*model.Opportunity, len(opps))
	for i := range opps {
		oppByID[opps[i].ID] = &opps[i]
	}
	out := make(map[string]ranking.Explanation, len(assignments))
	for _, a := range assignments {
		u, o := userByID[a.UserID], oppByID[a.OpportunityID]
		if u == nil || o == nil {
			continue
		}
		c := s.candidate(u, o, s.seenBy(ctx, l, u.ID), now)
		out[u.ID] = s.ranker.Explain(u, c, boosts[u.ID])
	}
	return out
}

func (s *Service) solve(ctx context.Context, users []string, capacities map[string]int, edges []assign.Edge) (*assign.Problem, assign.Result, error) {
	p, err := assign.NewProblem(users, capacities, edges)
	if err != nil {
		return nil, assign.Result{}, fmt.Errorf("build assignment problem: %w", err)
	}
	res, err := s.solver.Solve(ctx, p)
	if err != nil {
		return nil, assign.Result{}, fmt.Errorf("solve assignment: %w", err)
	}
	return p, res, nil
}

// edges scores every eligible pair. Users are scored concurrently into
// their own slot so the output order does not depend on scheduling.
func (s *Service) edges(ctx context.Context, l audit.Log, users []model.User, opps []model.Opportunity, now time.Time) ([]assign.Edge, error) {
	slots := make([][]assign.Edge, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.workerCount))
	for i := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u := &users[i]
			seen := s.seenBy(gctx, l, u.ID)
			for j := range opps {
				c := s.candidate(u, &opps[j], seen, now)
				if !c.Eligibility.Eligible {
					continue
				}
				slots[i] = append(slots[i], assign.Edge{
					UserID:        u.ID,
					OpportunityID: opps[j].ID,
					Score:         s.ranker.Adjust(c.Fit.Score, c.Pulse),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var edges []assign.Edge
	for _, e := range slots {
		edges = append(edges, e...)
	}
	return edges, nil
}

// users resolves ids in order, skipping repeats; none means all.
func (s *Service) users(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return s.store.Users(ctx), nil
	}
	out := make([]model.User, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		u, err := s.store.User(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Commit books each assignment, re-validating capacity per grant. A grant
// that no longer fits, or whose user already holds another seat, is
// rejected on its own; the rest of the batch goes on.
func (s *Service) Commit(ctx context.Context, assignments []assign.Assignment) CommitResult {
	res := CommitResult{Granted: []assign.Assignment{}, Rejected: []Rejection{}}
	granted := make(map[string]bool, len(assignments))
	held := s.seatHolders(ctx)
	for _, a := range assignments {
		reason := ""
		switch {
		case granted[a.UserID]:
			reason = RejectDuplicateUser
		case held[a.UserID] != "" && held[a.UserID] != a.OpportunityID:
			reason = RejectSeated
		default:
			booked, err := s.store.Reserve(ctx, a.OpportunityID, a.UserID)
			switch {
			case err == nil:
				if booked {
					s.record(ctx, a.UserID, a.OpportunityID, model.KindAccepted)
				}
			case errors.Is(err, model.ErrConflict):
				reason = RejectFull
			case errors.Is(err, model.ErrNotFound):
				reason = RejectNotFound
			default:
				reason = RejectError
				s.logger.Warn(ctx, "grant failed",
					logger.String("user", a.UserID),
					logger.String("opportunity", a.OpportunityID),
					logger.Error(err),
				)
			}
		}
		if reason != "" {
			metrics.RecordGrant("rejected")
			res.Rejected = append(res.Rejected, Rejection{UserID: a.UserID, OpportunityID: a.OpportunityID, Reason: reason})
			continue
		}
		metrics.RecordGrant("granted")
		granted[a.UserID] = true
		res.Granted = append(res.Granted, a)
	}
	return res
}

// seatHolders maps each booked user to the first opportunity, by id, where
// they hold a seat.
func (s *Service) seatHolders(ctx context.Context) map[string]string {
	held := make(map[string]string)
	for _, o := range s.store.Opportunities(ctx) {
		for _, p := range o.Participants {
			if _, ok := held[p]; !ok {
				held[p] = o.ID
			}
		}
	}
	return held
}
