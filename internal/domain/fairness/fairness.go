// Package fairness measures how evenly an allocation treats user cohorts
// and how well it fills the available seats.
package fairness

import (
	"slices"

	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/model"
)

// DefaultLambda weighs the cohort boost added to rebalance scores.
const DefaultLambda = 0.5

// ExposureRates returns, per cohort, the share of its users that received a
// seat. Users without a cohort are ignored.
func ExposureRates(users []model.User, assignments []assign.Assignment) map[string]float64 {
	cohortOf := make(map[string]string, len(users))
	totals := make(map[string]int)
	for _, u := range users {
		if u.Cohort == "" {
			continue
		}
		cohortOf[u.ID] = u.Cohort
		totals[u.Cohort]++
	}
	seated := make(map[string]int)
	for _, a := range assignments {
		if c, ok := cohortOf[a.UserID]; ok {
			seated[c]++
		}
	}
	rates := make(map[string]float64, len(totals))
	for c, n := range totals {
		rates[c] = float64(seated[c]) / float64(n)
	}
	return rates
}

// Gap is the spread between the best and worst treated cohort.
func Gap(rates map[string]float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	lo, hi := 1.0, 0.0
	for _, r := range rates {
		lo = min(lo, r)
		hi = max(hi, r)
	}
	return hi - lo
}

// Boost is how far a cohort trails the best treated one, never negative.
// Users without a cohort get no boost.
func Boost(cohort string, rates map[string]float64) float64 {
	if cohort == "" || len(rates) == 0 {
		return 0
	}
	best := 0.0
	for _, r := range rates {
		best = max(best, r)
	}
	return max(0, best-rates[cohort])
}

// Gini returns the Gini coefficient of non-negative values; 0 is perfectly even.
func Gini(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	var weighted, total float64
	for i, v := range sorted {
		weighted += float64(i+1) * v
		total += v
	}
	if total == 0 {
		return 0
	}
	n := float64(len(sorted))
	return 2*weighted/(n*total) - (n+1)/n
}

// Summary describes an allocation.
type Summary struct {
	Assigned      int                `json:"assigned"`
	Capacity      int                `json:"capacity"`
	Utilization   float64            `json:"utilization"`
	AvgFill       float64            `json:"avg_fill"`
	Gini          float64            `json:"gini"`
	FairnessGap   float64            `json:"fairness_gap"`
	ExposureRates map[string]float64 `json:"exposure_rates"`
	AvgDiversity  float64            `json:"avg_diversity"`
}

// Summarize computes utilization over seats offered, average per-opportunity
// fill, Gini of seats granted per opportunity, and cohort exposure.
func Summarize(users []model.User, capacities map[string]int, assignments []assign.Assignment) Summary {
	counts := make(map[string]int, len(capacities))
	for _, a := range assignments {
		counts[a.OpportunityID]++
	}
	s := Summary{Assigned: len(assignments)}
	var fill float64
	ids := make([]string, 0, len(capacities))
	for id := range capacities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	granted := make([]float64, 0, len(counts))
	for _, id := range ids {
		c := max(0, capacities[id])
		s.Capacity += c
		if c > 0 {
			fill += float64(counts[id]) / float64(c)
		}
		if counts[id] > 0 {
			granted = append(granted, float64(counts[id]))
		}
	}
	if s.Capacity > 0 {
		s.Utilization = float64(s.Assigned) / float64(s.Capacity)
	}
	if len(ids) > 0 {
		s.AvgFill = fill / float64(len(ids))
	}
	s.Gini = Gini(granted)
	s.ExposureRates = ExposureRates(users, assignments)
	s.FairnessGap = Gap(s.ExposureRates)
	return s
}

// Diversity returns the mean number of distinct categories across each
// user's primary pick and alternatives. Opportunities without a category
// are not counted.
func Diversity(recs map[string]assign.Recommendation, categoryOf map[string]string) float64 {
	if len(recs) == 0 {
		return 0
	}
	var total int
	for _, r := range recs {
		seen := make(map[string]struct{}, 1+len(r.Alternatives))
		for _, id := range append([]string{r.Primary}, r.Alternatives...) {
			if c := categoryOf[id]; c != "" {
				seen[c] = struct{}{}
			}
		}
		total += len(seen)
	}
	return float64(total) / float64(len(recs))
}
