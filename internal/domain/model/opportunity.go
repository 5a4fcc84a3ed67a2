package model

import (
	"slices"
	"strings"
	"time"
)

// GroupSize is a coarse bucket of how many people attend.
type GroupSize string

// Group size buckets.
const (
	GroupSmall  GroupSize = "small"
	GroupMedium GroupSize = "medium"
	GroupLarge  GroupSize = "large"
)

// Level maps the bucket onto [0,1]; unknown values sit in the middle.
func (g GroupSize) Level() float64 {
	switch g {
	case GroupSmall:
		return 0
	case GroupLarge:
		return 1
	default:
		return 0.5
	}
}

// Intensity is how physically or socially demanding an opportunity is.
type Intensity string

// Intensity levels.
const (
	IntensityLow  Intensity = "low"
	IntensityMed  Intensity = "med"
	IntensityHigh Intensity = "high"
)

// Level maps the intensity onto [0,1]; unknown values sit in the middle.
func (i Intensity) Level() float64 {
	switch i {
	case IntensityLow:
		return 0
	case IntensityHigh:
		return 1
	default:
		return 0.5
	}
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && w.End.After(w.Start)
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Opportunity is a capacity-bounded meetup users can be matched to.
type Opportunity struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Capacity         int       `json:"capacity"`
	Participants     []string  `json:"participants"`
	Tags             []string  `json:"tags"`
	Window           Window    `json:"window"`
	Location         Location  `json:"location"`
	GroupSize        GroupSize `json:"group_size"`
	Intensity        Intensity `json:"intensity"`
	BeginnerFriendly bool      `json:"beginner_friendly"`
}

// Validate enforces the invariants every stored opportunity must hold.
func (o *Opportunity) Validate() error {
	switch {
	case strings.TrimSpace(o.ID) == "":
		return InvalidField("id", "must not be empty")
	case o.Capacity < 0:
		return InvalidField("capacity", "must not be negative")
	case o.Capacity == 0:
		return InvalidField("capacity", "must be positive")
	case len(o.Participants) > o.Capacity:
		return InvalidField("participants", "exceed capacity")
	case !o.Window.Valid():
		return InvalidField("window", "end must be after start")
	}
	return nil
}

// SeatsLeft returns the remaining capacity, never below zero.
func (o *Opportunity) SeatsLeft() int {
	return max(0, o.Capacity-len(o.Participants))
}

// Full reports whether every seat is taken.
func (o *Opportunity) Full() bool {
	return len(o.Participants) >= o.Capacity
}

// Holds reports whether userID already has a seat.
func (o *Opportunity) Holds(userID string) bool {
	return slices.Contains(o.Participants, userID)
}

// Clone returns a deep copy safe to hand to readers.
func (o *Opportunity) Clone() Opportunity {
	c := *o
	c.Participants = slices.Clone(o.Participants)
	c.Tags = slices.Clone(o.Tags)
	return c
}
