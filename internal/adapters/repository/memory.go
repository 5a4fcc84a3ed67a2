package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/okian/flok/internal/domain/model"
)

// MemoryStore implements Store in memory. Every read returns a deep copy so
// callers can never mutate stored participants.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	opps  map[string]model.Opportunity
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Use Seed.Apply to preload it.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		opps:  make(map[string]model.Opportunity),
	}
}

func (s *MemoryStore) PutUser(_ context.Context, u model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
	return nil
}

// PutOpportunity takes participants from o only on first insert. Later
// updates keep the booked seats, which change through Reserve and Release.
func (s *MemoryStore) PutOpportunity(_ context.Context, o model.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.opps[o.ID]; ok {
		o.Participants = prev.Participants
		if o.Capacity < len(o.Participants) {
			return model.InvalidField("capacity", fmt.Sprintf("%d seats already booked", len(o.Participants)))
		}
	}
	if err := o.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(o.Participants))
	for _, p := range o.Participants {
		if strings.TrimSpace(p) == "" {
			return model.InvalidField("participants", "user id must not be empty")
		}
		if _, dup := seen[p]; dup {
			return model.InvalidField("participants", fmt.Sprintf("user %q listed twice", p))
		}
		seen[p] = struct{}{}
	}
	s.opps[o.ID] = o.Clone()
	return nil
}

func (s *MemoryStore) User(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.NotFound("user", id)
	}
	return u.Clone(), nil
}

func (s *MemoryStore) Opportunity(_ context.Context, id string) (model.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.opps[id]
	if !ok {
		return model.Opportunity{}, model.NotFound("opportunity", id)
	}
	return o.Clone(), nil
}

func (s *MemoryStore) Users(_ context.Context) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	slices.SortFunc(out, func(a, b model.User) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *MemoryStore) Opportunities(_ context.Context) []model.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Opportunity, 0, len(s.opps))
	for _, o := range s.opps {
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, func(a, b model.Opportunity) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *MemoryStore) Reserve(_ context.Context, opportunityID, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, model.InvalidField("user_id", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opps[opportunityID]
	if !ok {
		return false, model.NotFound("opportunity", opportunityID)
	}
	if o.Holds(userID) {
		return false, nil
	}
	if o.Full() {
		return false, fmt.Errorf("%s: %w: %w", opportunityID, ErrFull, model.ErrConflict)
	}
	o.Participants = append(slices.Clone(o.Participants), userID)
	s.opps[opportunityID] = o
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, opportunityID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opps[opportunityID]
	if !ok {
		return false, model.NotFound("opportunity", opportunityID)
	}
	i := slices.Index(o.Participants, userID)
	if i < 0 {
		return false, nil
	}
	o.Participants = slices.Delete(slices.Clone(o.Participants), i, i+1)
	s.opps[opportunityID] = o
	return true, nil
}

func (s *MemoryStore) Count(_ context.Context) (users, opportunities int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.opps)
}
