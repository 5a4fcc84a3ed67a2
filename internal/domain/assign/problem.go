// Package assign allocates users to capacity-bounded opportunities so that
// the total score of the assignment is maximal.
package assign

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/okian/flok/internal/domain/model"
)

// Edge is a permitted (user, opportunity) pair and its score.
type Edge struct {
	UserID        string  `json:"user_id"`
	OpportunityID string  `json:"opportunity_id"`
	Score         float64 `json:"score"`
}

// Assignment is one granted seat.
type Assignment struct {
	UserID        string  `json:"user_id"`
	OpportunityID string  `json:"opportunity_id"`
	Score         float64 `json:"score"`
}

// Result is a solver outcome. Unassigned users are normal output.
type Result struct {
	Assignments []Assignment `json:"assignments"`
	Unassigned  []string     `json:"unassigned"`
	Total       float64      `json:"total"`
}

// Solver computes an assignment for a problem. It returns an error only
// when ctx is done.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (Result, error)
}

// Problem is a validated point-in-time snapshot of users, seats and edges.
// Users, opportunities and edges are kept sorted by id.
type Problem struct {
	users      []string
	opps       []string
	capacities map[string]int
	edges      []Edge
}

// NewProblem validates the input and returns a problem. Capacities are the
// seats still available; negative values and non-finite scores are rejected.
func NewProblem(users []string, capacities map[string]int, edges []Edge) (*Problem, error) {
	p := &Problem{capacities: make(map[string]int, len(capacities))}

	seenUser := make(map[string]struct{}, len(users))
	for _, u := range users {
		if strings.TrimSpace(u) == "" {
			return nil, model.InvalidField("users", "user id must not be empty")
		}
		if _, dup := seenUser[u]; dup {
			continue
		}
		seenUser[u] = struct{}{}
		p.users = append(p.users, u)
	}
	slices.Sort(p.users)

	for id, c := range capacities {
		if strings.TrimSpace(id) == "" {
			return nil, model.InvalidField("capacities", "opportunity id must not be empty")
		}
		if c < 0 {
			return nil, model.InvalidField("capacities", fmt.Sprintf("opportunity %q has negative capacity", id))
		}
		p.capacities[id] = c
		p.opps = append(p.opps, id)
	}
	slices.Sort(p.opps)

	type pair struct{ u, o string }
	seenEdge := make(map[pair]struct{}, len(edges))
	for _, e := range edges {
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
			return nil, model.InvalidField("edges", fmt.Sprintf("score for %s/%s is not finite", e.UserID, e.OpportunityID))
		}
		if _, ok := seenUser[e.UserID]; !ok {
			return nil, model.InvalidField("edges", fmt.Sprintf("unknown user %q", e.UserID))
		}
		if _, ok := p.capacities[e.OpportunityID]; !ok {
			return nil, model.InvalidField("edges", fmt.Sprintf("unknown opportunity %q", e.OpportunityID))
		}
		k := pair{e.UserID, e.OpportunityID}
		if _, dup := seenEdge[k]; dup {
			return nil, model.InvalidField("edges", fmt.Sprintf("duplicate edge %s/%s", e.UserID, e.OpportunityID))
		}
		seenEdge[k] = struct{}{}
		p.edges = append(p.edges, e)
	}
	slices.SortFunc(p.edges, func(a, b Edge) int {
		if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return cmp.Compare(a.OpportunityID, b.OpportunityID)
	})
	return p, nil
}

// Users returns the sorted user ids.
func (p *Problem) Users() []string { return slices.Clone(p.users) }

// Opportunities returns the sorted opportunity ids.
func (p *Problem) Opportunities() []string { return slices.Clone(p.opps) }

// Capacity returns the seats available at an opportunity.
func (p *Problem) Capacity(opportunityID string) int { return p.capacities[opportunityID] }

// Edges returns the edges sorted by user then opportunity.
func (p *Problem) Edges() []Edge { return slices.Clone(p.edges) }

// result builds a Result from a user→edge choice.
func (p *Problem) result(chosen map[string]Edge) Result {
	r := Result{Assignments: []Assignment{}, Unassigned: []string{}}
	for _, u := range p.users {
		e, ok := chosen[u]
		if !ok {
			r.Unassigned = append(r.Unassigned, u)
			continue
		}
		r.Assignments = append(r.Assignments, Assignment(e))
		r.Total += e.Score
	}
	return r
}

// Feasible reports whether r respects the problem: every assignment uses an
// edge, no user appears twice and no opportunity exceeds its capacity.
func (p *Problem) Feasible(r Result) error {
	allowed := make(map[[2]string]struct{}, len(p.edges))
	for _, e := range p.edges {
		allowed[[2]string{e.UserID, e.OpportunityID}] = struct{}{}
	}
	users := make(map[string]struct{}, len(r.Assignments))
	used := make(map[string]int)
	for _, a := range r.Assignments {
		if _, ok := allowed[[2]string{a.UserID, a.OpportunityID}]; !ok {
			return fmt.Errorf("assignment %s/%s has no edge: %w", a.UserID, a.OpportunityID, model.ErrConflict)
		}
		if _, dup := users[a.UserID]; dup {
			return fmt.Errorf("user %s assigned twice: %w", a.UserID, model.ErrConflict)
		}
		users[a.UserID] = struct{}{}
		used[a.OpportunityID]++
		if used[a.OpportunityID] > p.capacities[a.OpportunityID] {
			return fmt.Errorf("opportunity %s over capacity: %w", a.OpportunityID, model.ErrConflict)
		}
	}
	return nil
}

// Solver names accepted by ForName.
const (
	NameMinCostFlow = "mincostflow"
	NameGreedy      = "greedy"
)

// ForName returns the solver registered under name. An empty name selects
// the exact min-cost-flow solver.
func ForName(name string) (Solver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameMinCostFlow:
		return NewMinCostFlow(), nil
	case NameGreedy:
		return NewGreedy(), nil
	default:
		return nil, model.InvalidField("solver", fmt.Sprintf("unknown solver %q", name))
	}
}
