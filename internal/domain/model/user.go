package model

import (
	"slices"
	"strings"
)

// Goal is what a user is hoping to get out of meetups.
type Goal string

// Supported goals; the empty goal means no preference.
const (
	GoalFriends   Goal = "friends"
	GoalActive    Goal = "active"
	GoalVolunteer Goal = "volunteer"
	GoalLearn     Goal = "learn"
)

// CohortNewcomer marks first-time users for the newcomer boost.
const CohortNewcomer = "newcomer"

// User is a candidate for seats.
type User struct {
	ID            string    `json:"id"`
	InterestTags  []string  `json:"interest_tags"`
	Availability  []Window  `json:"availability"`
	Location      Location  `json:"location"`
	MaxTravelMins float64   `json:"max_travel_mins"`
	GroupPref     GroupSize `json:"group_pref"`
	IntensityPref Intensity `json:"intensity_pref"`
	Goal          Goal      `json:"goal"`
	Cohort        string    `json:"cohort"`
}

// Validate checks the user fields the core depends on.
func (u *User) Validate() error {
	switch {
	case strings.TrimSpace(u.ID) == "":
		return InvalidField("id", "must not be empty")
	case u.MaxTravelMins < 0:
		return InvalidField("max_travel_mins", "must not be negative")
	}
	for _, w := range u.Availability {
		if !w.Valid() {
			return InvalidField("availability", "end must be after start")
		}
	}
	return nil
}

// Newcomer reports whether the user belongs to the newcomer cohort.
func (u *User) Newcomer() bool {
	return strings.EqualFold(u.Cohort, CohortNewcomer)
}

// Clone returns a deep copy safe to hand to readers.
func (u *User) Clone() User {
	c := *u
	c.InterestTags = slices.Clone(u.InterestTags)
	c.Availability = slices.Clone(u.Availability)
	return c
}

// AvailableFor reports whether w intersects one of the user's availability
// windows. A user who listed no availability is available at any time.
func (u *User) AvailableFor(w Window) bool {
	if len(u.Availability) == 0 {
		return true
	}
	for _, a := range u.Availability {
		if a.Overlaps(w) {
			return true
		}
	}
	return false
}
