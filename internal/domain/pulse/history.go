package pulse

import (
	"slices"
	"sync"
	"time"
)

// DefaultHistorySize is the number of samples kept per opportunity.
const DefaultHistorySize = 50

// Sample is the pulse of an opportunity at one point in time.
type Sample struct {
	At    time.Time `json:"at"`
	Pulse float64   `json:"pulse"`
}

// History keeps the most recent pulse samples per opportunity. It is safe
// for concurrent use.
type History struct {
	mu      sync.RWMutex
	size    int
	samples map[string][]Sample
}

// NewHistory returns a history bounded to size samples per opportunity; a
// non-positive size uses DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, samples: make(map[string][]Sample)}
}

// Record appends a sample and returns the one it follows, if any.
func (h *History) Record(id string, s Sample) (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := h.samples[id]
	var prev Sample
	ok := len(cur) > 0
	if ok {
		prev = cur[len(cur)-1]
	}
	if len(cur) == h.size {
		cur = slices.Delete(cur, 0, 1)
	}
	h.samples[id] = append(cur, s)
	return prev, ok
}

// Last returns the latest sample of id.
func (h *History) Last(id string) (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cur := h.samples[id]
	if len(cur) == 0 {
		return Sample{}, false
	}
	return cur[len(cur)-1], true
}

// Samples returns a copy of the samples of id, oldest first.
func (h *History) Samples(id string) []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.samples[id])
}
