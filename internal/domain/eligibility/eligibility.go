// Package eligibility decides whether a user can be offered an opportunity.
package eligibility

import (
	"fmt"

	"github.com/okian/flok/internal/domain/geo"
	"github.com/okian/flok/internal/domain/model"
)

// Code identifies a failed eligibility rule.
type Code string

// Rule codes in evaluation order.
const (
	NotInAvailability Code = "NOT_IN_AVAILABILITY"
	TooFar            Code = "TOO_FAR"
	Full              Code = "FULL"
)

// Reason is one failed rule with a human readable message.
type Reason struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Result lists every rule the pair failed; it is eligible when none did.
type Result struct {
	Eligible bool     `json:"eligible"`
	Reasons  []Reason `json:"reasons,omitempty"`
}

// Has reports whether the result contains code.
func (r Result) Has(code Code) bool {
	for _, reason := range r.Reasons {
		if reason.Code == code {
			return true
		}
	}
	return false
}

// Filter evaluates the eligibility rules.
type Filter struct {
	minutesPerKm float64
}

// New returns a filter using minutesPerKm to estimate travel; a
// non-positive rate uses the default.
func New(minutesPerKm float64) Filter {
	if minutesPerKm <= 0 {
		minutesPerKm = geo.DefaultMinutesPerKm
	}
	return Filter{minutesPerKm: minutesPerKm}
}

// Check evaluates every rule for the pair. A user who already holds a seat
// is never reported as FULL.
func (f Filter) Check(u *model.User, o *model.Opportunity) Result {
	var reasons []Reason
	if !u.AvailableFor(o.Window) {
		reasons = append(reasons, Reason{
			Code:    NotInAvailability,
			Message: "happens outside your availability",
		})
	}
	if minutes := geo.TravelMinutes(u.Location, o.Location, f.minutesPerKm); minutes > u.MaxTravelMins {
		reasons = append(reasons, Reason{
			Code:    TooFar,
			Message: fmt.Sprintf("about %.0f min away, over your %.0f min limit", minutes, u.MaxTravelMins),
		})
	}
	if o.Full() && !o.Holds(u.ID) {
		reasons = append(reasons, Reason{
			Code:    Full,
			Message: fmt.Sprintf("all %d seats are taken", o.Capacity),
		})
	}
	return Result{Eligible: len(reasons) == 0, Reasons: reasons}
}
