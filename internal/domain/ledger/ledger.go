// Package ledger keeps a recency-weighted net-demand scalar per opportunity.
//
// Every opportunity owns one State. Updates decay the stored demand to the
// event's timestamp and then add a fixed delta for the interaction kind.
// Updates to the same opportunity are serialized by the shard lock that owns
// its id, so a decay is never applied twice and a delta is never lost.
package ledger

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/flok/internal/domain/model"
)

// Default ledger configuration constants.
const (
	DefaultDecayTimescale = 12 * time.Hour
	defaultShardCount     = 64
)

// Per-kind demand increments.
const (
	DeltaAccepted = 1.0
	DeltaClicked  = 0.2
	DeltaDeclined = -0.5
	DeltaShown    = 0.0
)

// Delta returns the demand increment for a kind.
func Delta(k model.Kind) float64 {
	switch k {
	case model.KindAccepted:
		return DeltaAccepted
	case model.KindClicked:
		return DeltaClicked
	case model.KindDeclined:
		return DeltaDeclined
	default:
		return DeltaShown
	}
}

// Decay returns d after dt has elapsed under timescale tau. Negative dt is
// treated as zero and a non-positive tau disables decay.
func Decay(d float64, dt, tau time.Duration) float64 {
	if dt <= 0 || tau <= 0 {
		return d
	}
	return d * math.Exp(-dt.Seconds()/tau.Seconds())
}

// State is the stored demand of one opportunity.
type State struct {
	D          float64   `json:"d"`
	LastUpdate time.Time `json:"last_update"`
}

// At returns the state decayed to t without changing the stored value.
func (s State) At(t time.Time, tau time.Duration) float64 {
	return Decay(s.D, t.Sub(s.LastUpdate), tau)
}

type shard struct {
	mu     sync.RWMutex
	states map[string]*State
}

// Ledger is the exclusive owner of every opportunity's demand state.
type Ledger struct {
	tau        time.Duration
	shardCount int
	shards     []*shard
}

// New creates a ledger with configuration options.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		tau:        DefaultDecayTimescale,
		shardCount: defaultShardCount,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.shards = make([]*shard, l.shardCount)
	for i := range l.shards {
		l.shards[i] = &shard{states: make(map[string]*State)}
	}
	return l
}

// Timescale returns τ.
func (l *Ledger) Timescale() time.Duration { return l.tau }

func (l *Ledger) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Update applies decay-then-delta for one interaction and returns the new
// state. An unknown opportunity starts from a zero state at the event time.
// lastUpdate never moves backwards: an event older than the stored
// timestamp decays by nothing and only contributes its delta.
func (l *Ledger) Update(ctx context.Context, opportunityID string, kind model.Kind, at time.Time) (State, error) {
	switch {
	case strings.TrimSpace(opportunityID) == "":
		return State{}, model.InvalidField("opportunity_id", "must not be empty")
	case !kind.Valid():
		return State{}, model.InvalidField("kind", "unknown interaction kind")
	case at.IsZero():
		return State{}, model.InvalidField("at", "timestamp is required")
	}
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	s := l.shardFor(opportunityID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[opportunityID]
	if !ok {
		st = &State{LastUpdate: at}
		s.states[opportunityID] = st
	}
	st.D = Decay(st.D, at.Sub(st.LastUpdate), l.tau)
	if at.After(st.LastUpdate) {
		st.LastUpdate = at
	}
	st.D += Delta(kind)
	return *st, nil
}

// Ensure creates a zero state for opportunityID if none exists yet.
func (l *Ledger) Ensure(opportunityID string, at time.Time) {
	s := l.shardFor(opportunityID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[opportunityID]; !ok {
		s.states[opportunityID] = &State{LastUpdate: at}
	}
}

// Restore replaces the state of opportunityID, e.g. from a snapshot.
func (l *Ledger) Restore(opportunityID string, st State) error {
	switch {
	case strings.TrimSpace(opportunityID) == "":
		return model.InvalidField("opportunity_id", "must not be empty")
	case math.IsNaN(st.D) || math.IsInf(st.D, 0):
		return model.InvalidField("d", "must be finite")
	case st.LastUpdate.IsZero():
		return model.InvalidField("last_update", "timestamp is required")
	}
	s := l.shardFor(opportunityID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[opportunityID] = &State{D: st.D, LastUpdate: st.LastUpdate}
	return nil
}

// State returns a copy of the stored state.
func (l *Ledger) State(opportunityID string) (State, bool) {
	s := l.shardFor(opportunityID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[opportunityID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// DemandAt returns the demand decayed to t; unknown ids have zero demand.
func (l *Ledger) DemandAt(opportunityID string, t time.Time) float64 {
	st, ok := l.State(opportunityID)
	if !ok {
		return 0
	}
	return st.At(t, l.tau)
}

// Snapshot returns the demand of every known opportunity decayed to t.
// Each shard is read under its own lock; the result is a consistent view
// per opportunity, not a global linearizable cut.
func (l *Ledger) Snapshot(t time.Time) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range l.shards {
		s.mu.RLock()
		for id, st := range s.states {
			out[id] = st.At(t, l.tau)
		}
		s.mu.RUnlock()
	}
	return out
}

// IDs returns the known opportunity ids in ascending order.
func (l *Ledger) IDs() []string {
	var ids []string
	for _, s := range l.shards {
		s.mu.RLock()
		for id := range s.states {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked opportunities.
func (l *Ledger) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.RLock()
		n += len(s.states)
		s.mu.RUnlock()
	}
	return n
}
