package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/okian/flok/internal/domain/model"
)

// Seed is a JSON fixture of users and opportunities.
type Seed struct {
	Users         []model.User        `json:"users"`
	Opportunities []model.Opportunity `json:"opportunities"`
}

// LoadSeed reads a fixture file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("%w: %s: %v", ErrInvalidSeed, path, err)
	}
	return s, nil
}

// Writer accepts directory records. Store implements it.
type Writer interface {
	PutUser(ctx context.Context, u model.User) error
	PutOpportunity(ctx context.Context, o model.Opportunity) error
}

// Apply writes every record to w. Valid records are stored even when
// others fail; the failures are joined in the returned error.
func (s Seed) Apply(ctx context.Context, store Writer) error {
	var errs []error
	for _, u := range s.Users {
		if err := store.PutUser(ctx, u); err != nil {
			errs = append(errs, fmt.Errorf("user %q: %w", u.ID, err))
		}
	}
	for _, o := range s.Opportunities {
		if err := store.PutOpportunity(ctx, o); err != nil {
			errs = append(errs, fmt.Errorf("opportunity %q: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}
