// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Kind is the type of a user interaction with an opportunity.
type Kind string

// Interaction kinds understood by the demand ledger.
const (
	KindShown    Kind = "shown"
	KindClicked  Kind = "clicked"
	KindAccepted Kind = "accepted"
	KindDeclined Kind = "declined"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindShown, KindClicked, KindAccepted, KindDeclined}

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", InvalidField("kind", "must be one of shown, clicked, accepted, declined")
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindShown, KindClicked, KindAccepted, KindDeclined:
		return true
	}
	return false
}

// Interaction is an append-only record of a user touching an opportunity.
// It is consumed exactly once by the demand ledger; ID provides idempotency.
type Interaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	OpportunityID string    `json:"opportunity_id"`
	Kind          Kind      `json:"kind"`
	At            time.Time `json:"at"`
}

// Validate checks the fields the ledger depends on.
func (i Interaction) Validate() error {
	switch {
	case strings.TrimSpace(i.OpportunityID) == "":
		return InvalidField("opportunity_id", "must not be empty")
	case !i.Kind.Valid():
		return InvalidField("kind", "must be one of shown, clicked, accepted, declined")
	case i.At.IsZero():
		return InvalidField("at", "timestamp is required")
	}
	return nil
}
