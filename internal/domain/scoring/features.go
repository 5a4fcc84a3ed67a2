package scoring

import (
	"math"
	"strings"

	"github.com/okian/flok/internal/domain/model"
)

// Feature names in the order the model consumes them.
const (
	FeatureInterest          = "interest"
	FeatureGoalMatch         = "goal_match"
	FeatureGroupMatch        = "group_match"
	FeatureTravelPenalty     = "travel_penalty"
	FeatureIntensityMismatch = "intensity_mismatch"
	FeatureNovelty           = "novelty_bonus"
	FeaturePulseCentered     = "pulse_centered"
	FeatureAvailability      = "availability_ok"
)

// FeatureOrder is the canonical feature order of a model artifact.
var FeatureOrder = []string{
	FeatureInterest,
	FeatureGoalMatch,
	FeatureGroupMatch,
	FeatureTravelPenalty,
	FeatureIntensityMismatch,
	FeatureNovelty,
	FeaturePulseCentered,
	FeatureAvailability,
}

// Features is the per (user, opportunity) input of the fit model.
type Features struct {
	Interest          float64 `json:"interest"`
	GoalMatch         float64 `json:"goal_match"`
	GroupMatch        float64 `json:"group_match"`
	TravelMinutes     float64 `json:"travel_minutes"`
	TravelPenalty     float64 `json:"travel_penalty"`
	IntensityMismatch float64 `json:"intensity_mismatch"`
	Novelty           float64 `json:"novelty_bonus"`
	PulseCentered     float64 `json:"pulse_centered"`
	Availability      float64 `json:"availability_ok"`
}

// Value returns the named feature; unknown names yield false.
func (f Features) Value(name string) (float64, bool) {
	switch name {
	case FeatureInterest:
		return f.Interest, true
	case FeatureGoalMatch:
		return f.GoalMatch, true
	case FeatureGroupMatch:
		return f.GroupMatch, true
	case FeatureTravelPenalty:
		return f.TravelPenalty, true
	case FeatureIntensityMismatch:
		return f.IntensityMismatch, true
	case FeatureNovelty:
		return f.Novelty, true
	case FeaturePulseCentered:
		return f.PulseCentered, true
	case FeatureAvailability:
		return f.Availability, true
	}
	return 0, false
}

var goalHints = map[model.Goal][]string{
	model.GoalFriends:   {"social", "community", "hangout", "meetup"},
	model.GoalActive:    {"fitness", "sports", "outdoor", "active"},
	model.GoalVolunteer: {"volunteer", "service", "community"},
	model.GoalLearn:     {"learn", "education", "workshop", "class", "training"},
}

// InterestJaccard is |A∩B| / |A∪B| over lower-cased tags; two empty sets score 0.
func InterestJaccard(userTags, oppTags []string) float64 {
	a := tagSet(userTags)
	b := tagSet(oppTags)
	union := len(a)
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// GoalMatch is 1 when a hint word for goal appears in the category or tags.
func GoalMatch(goal model.Goal, category string, tags []string) float64 {
	hints, ok := goalHints[model.Goal(strings.ToLower(string(goal)))]
	if !ok {
		return 0
	}
	words := tagSet(tags)
	cat := strings.ToLower(category)
	for _, h := range hints {
		if _, ok := words[h]; ok || strings.Contains(cat, h) {
			return 1
		}
	}
	return 0
}

// GroupMatch is 1 − |pref − size| on the graded group-size scale.
func GroupMatch(pref, size model.GroupSize) float64 {
	return 1 - math.Abs(pref.Level()-size.Level())
}

// TravelPenalty is minutes / tolerance capped at 1; no tolerance is full penalty.
func TravelPenalty(minutes, tolerance float64) float64 {
	if tolerance <= 0 {
		return 1
	}
	return math.Min(1, minutes/tolerance)
}

// IntensityMismatch is |pref − intensity| on the graded intensity scale.
func IntensityMismatch(pref, got model.Intensity) float64 {
	return math.Abs(pref.Level() - got.Level())
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}
