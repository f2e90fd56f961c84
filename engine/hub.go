package engine

import (
	"sync"
	"time"
)

// ProgressEvent is one phase-boundary progress report for a job.
type ProgressEvent struct {
	JobID    string    `json:"job_id"`
	Phase    string    `json:"phase"`
	Fraction float64   `json:"fraction"`
	Time     time.Time `json:"time"`
}

// Hub fans progress events out to per-job subscribers. Delivery is
// best-effort: a subscriber that stops draining loses events rather than
// stalling the conversion worker.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan ProgressEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe registers for one job's progress events. The returned cancel
// function unregisters and closes the channel; callers must invoke it.
func (h *Hub) Subscribe(jobID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 16)

	h.mu.Lock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[chan ProgressEvent]struct{})
		h.subs[jobID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[jobID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the event's job.
func (h *Hub) Publish(ev ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
