package assign

import (
	"cmp"
	"context"
	"slices"
)

// Greedy assigns the best remaining edge first. It is fast but not optimal.
type Greedy struct{}

// NewGreedy returns the greedy solver.
func NewGreedy() *Greedy { return &Greedy{} }

// Solve walks edges by score desc, then user id, then opportunity id, and
// takes each one whose user is free and whose opportunity has a seat left.
// Non-positive edges are skipped; leaving the user unassigned scores better.
func (s *Greedy) Solve(ctx context.Context, p *Problem) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	edges := p.Edges()
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return cmp.Compare(a.OpportunityID, b.OpportunityID)
	})

	seats := make(map[string]int, len(p.capacities))
	for id, c := range p.capacities {
		seats[id] = c
	}
	chosen := make(map[string]Edge, len(p.users))
	for i, e := range edges {
		if i > 0 && i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		if e.Score <= 0 {
			break
		}
		if _, taken := chosen[e.UserID]; taken || seats[e.OpportunityID] == 0 {
			continue
		}
		seats[e.OpportunityID]--
		chosen[e.UserID] = e
	}
	return p.result(chosen), nil
}
