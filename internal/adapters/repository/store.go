// Package repository holds users, opportunities and their booked seats.
package repository

import (
	"context"

	"github.com/okian/flok/internal/domain/model"
)

// Store provides read/write access to the directory and seat bookings.
type Store interface {
	// PutUser creates or replaces a user.
	PutUser(ctx context.Context, u model.User) error
	// PutOpportunity creates or replaces an opportunity. Participants are
	// taken on first insert only; updates keep the booked seats.
	PutOpportunity(ctx context.Context, o model.Opportunity) error

	// User returns a copy of the user or an error matching model.ErrNotFound.
	User(ctx context.Context, id string) (model.User, error)
	// Opportunity returns a copy of the opportunity or an error matching model.ErrNotFound.
	Opportunity(ctx context.Context, id string) (model.Opportunity, error)

	// Users returns copies of every user ordered by id.
	Users(ctx context.Context) []model.User
	// Opportunities returns copies of every opportunity ordered by id.
	Opportunities(ctx context.Context) []model.Opportunity

	// Reserve books a seat. It reports false when the user already held one
	// and fails with ErrFull when no seat is left.
	Reserve(ctx context.Context, opportunityID, userID string) (bool, error)
	// Release frees a seat and reports whether the user held one.
	Release(ctx context.Context, opportunityID, userID string) (bool, error)

	// Count returns the number of users and opportunities.
	Count(ctx context.Context) (users, opportunities int)
}
