package assign

import (
	"context"
	"math"
)

// scoreScale converts scores to integer costs so path sums are exact.
const scoreScale = 1e6

const unreachable = math.MaxInt64

// MinCostFlow solves the assignment exactly with successive shortest
// augmenting paths on source → user → opportunity → sink.
type MinCostFlow struct{}

// NewMinCostFlow returns the exact solver.
func NewMinCostFlow() *MinCostFlow { return &MinCostFlow{} }

type arc struct {
	to   int
	rev  int
	cap  int
	cost int64
}

type graph struct {
	adj [][]arc
}

func (g *graph) add(from, to, capacity int, cost int64) {
	g.adj[from] = append(g.adj[from], arc{to: to, rev: len(g.adj[to]), cap: capacity, cost: cost})
	g.adj[to] = append(g.adj[to], arc{to: from, rev: len(g.adj[from]) - 1, cap: 0, cost: -cost})
}

// Solve augments one unit along the cheapest residual path while that path
// has negative cost. Each augmentation seats one more user and the path
// costs never decrease, so stopping at the first non-negative path yields a
// maximum-score assignment. Edges with a non-positive score are never used.
func (s *MinCostFlow) Solve(ctx context.Context, p *Problem) (Result, error) {
	nu, no := len(p.users), len(p.opps)
	source, sink := 0, nu+no+1
	g := &graph{adj: make([][]arc, nu+no+2)}

	userNode := make(map[string]int, nu)
	for i, u := range p.users {
		userNode[u] = 1 + i
		g.add(source, 1+i, 1, 0)
	}
	oppNode := make(map[string]int, no)
	for j, o := range p.opps {
		oppNode[o] = 1 + nu + j
	}
	for _, e := range p.edges {
		if e.Score <= 0 {
			continue
		}
		// Tiny positive scores still beat leaving the user unassigned.
		fixed := max(1, int64(math.Round(e.Score*scoreScale)))
		g.add(userNode[e.UserID], oppNode[e.OpportunityID], 1, -fixed)
	}
	for j, o := range p.opps {
		if c := p.capacities[o]; c > 0 {
			g.add(1+nu+j, sink, c, 0)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		dist, prevNode, prevArc := g.shortestPaths(source)
		if dist[sink] == unreachable || dist[sink] >= 0 {
			break
		}
		for v := sink; v != source; v = prevNode[v] {
			a := &g.adj[prevNode[v]][prevArc[v]]
			a.cap--
			g.adj[v][a.rev].cap++
		}
	}

	chosen := make(map[string]Edge, nu)
	score := make(map[[2]string]float64, len(p.edges))
	for _, e := range p.edges {
		score[[2]string{e.UserID, e.OpportunityID}] = e.Score
	}
	for i, u := range p.users {
		for _, a := range g.adj[1+i] {
			if a.to > nu && a.to < sink && a.cap == 0 && a.cost < 0 {
				o := p.opps[a.to-1-nu]
				chosen[u] = Edge{UserID: u, OpportunityID: o, Score: score[[2]string{u, o}]}
				break
			}
		}
	}
	return p.result(chosen), nil
}

// shortestPaths runs SPFA from src over arcs with residual capacity.
// The residual graph of a min-cost flow has no negative cycles.
func (g *graph) shortestPaths(src int) (dist []int64, prevNode, prevArc []int) {
	n := len(g.adj)
	dist = make([]int64, n)
	prevNode = make([]int, n)
	prevArc = make([]int, n)
	inQueue := make([]bool, n)
	for i := range dist {
		dist[i] = unreachable
		prevNode[i] = -1
	}
	dist[src] = 0
	queue := []int{src}
	inQueue[src] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		inQueue[u] = false
		for i, a := range g.adj[u] {
			if a.cap <= 0 {
				continue
			}
			if d := dist[u] + a.cost; d < dist[a.to] {
				dist[a.to] = d
				prevNode[a.to] = u
				prevArc[a.to] = i
				if !inQueue[a.to] {
					inQueue[a.to] = true
					queue = append(queue, a.to)
				}
			}
		}
	}
	return dist, prevNode, prevArc
}
