package assign

import (
	"cmp"
	"slices"
)

// Recommendation is a user's primary pick plus ranked alternatives.
type Recommendation struct {
	Primary      string   `json:"primary,omitempty"`
	Alternatives []string `json:"alternatives"`
}

// Recommend derives per-user recommendations from a solved problem. The
// primary pick is the assigned opportunity, or the best edge when the user
// was left unassigned; alternatives are the next topK edges by score.
func Recommend(p *Problem, r Result, topK int) map[string]Recommendation {
	assigned := make(map[string]string, len(r.Assignments))
	for _, a := range r.Assignments {
		assigned[a.UserID] = a.OpportunityID
	}
	byUser := make(map[string][]Edge, len(p.users))
	for _, e := range p.edges {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	out := make(map[string]Recommendation, len(p.users))
	for _, u := range p.users {
		edges := byUser[u]
		slices.SortStableFunc(edges, func(a, b Edge) int { return cmp.Compare(b.Score, a.Score) })
		rec := Recommendation{Primary: assigned[u], Alternatives: []string{}}
		if rec.Primary == "" && len(edges) > 0 {
			rec.Primary = edges[0].OpportunityID
		}
		for _, e := range edges {
			if len(rec.Alternatives) >= topK {
				break
			}
			if e.OpportunityID != rec.Primary {
				rec.Alternatives = append(rec.Alternatives, e.OpportunityID)
			}
		}
		out[u] = rec
	}
	return out
}
