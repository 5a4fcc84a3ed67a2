package service

import (
	"context"

	"github.com/okian/flok/internal/adapters/repository"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/pkg/metrics"
)

// PutUser creates or replaces a user.
func (s *Service) PutUser(ctx context.Context, u model.User) error {
	return s.store.PutUser(ctx, u)
}

// PutOpportunity creates or replaces an opportunity and starts tracking
// its demand.
func (s *Service) PutOpportunity(ctx context.Context, o model.Opportunity) error {
	if err := s.store.PutOpportunity(ctx, o); err != nil {
		return err
	}
	s.ledger.Ensure(o.ID, s.now())
	metrics.UpdateTrackedOpportunities(s.ledger.Len())
	return nil
}

// User returns a user by id.
func (s *Service) User(ctx context.Context, id string) (model.User, error) {
	return s.store.User(ctx, id)
}

// Opportunity returns an opportunity by id.
func (s *Service) Opportunity(ctx context.Context, id string) (model.Opportunity, error) {
	return s.store.Opportunity(ctx, id)
}

// Seed writes a fixture through the service so demand tracking starts for
// every opportunity.
func (s *Service) Seed(ctx context.Context, seed repository.Seed) error {
	return seed.Apply(ctx, s)
}

// RSVP books a seat and records an accepted interaction. It reports false
// when the user already held the seat; a full opportunity fails with an
// error matching model.ErrConflict.
func (s *Service) RSVP(ctx context.Context, opportunityID, userID string) (bool, error) {
	if _, err := s.running(); err != nil {
		return false, err
	}
	if _, err := s.store.User(ctx, userID); err != nil {
		return false, err
	}
	booked, err := s.store.Reserve(ctx, opportunityID, userID)
	if err != nil {
		return false, err
	}
	if booked {
		s.record(ctx, userID, opportunityID, model.KindAccepted)
	}
	return booked, nil
}

// CancelRSVP frees a seat and records a declined interaction. It reports
// false when the user held no seat.
func (s *Service) CancelRSVP(ctx context.Context, opportunityID, userID string) (bool, error) {
	if _, err := s.running(); err != nil {
		return false, err
	}
	released, err := s.store.Release(ctx, opportunityID, userID)
	if err != nil {
		return false, err
	}
	if released {
		s.record(ctx, userID, opportunityID, model.KindDeclined)
	}
	return released, nil
}
