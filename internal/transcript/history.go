package transcript

import "sync"

// DefaultHistoryCapacity bounds the utterance history when no explicit
// capacity is configured.
const DefaultHistoryCapacity = 10

// History is a bounded, most-recent-first list of distinct finalized
// utterances. Adding an utterance that is already present moves it to the
// front instead of duplicating it; when the list is full the oldest entry is
// evicted. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []string
}

// NewHistory creates a history bounded to capacity entries. A capacity of
// zero or less falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Add inserts text at the front, removing any existing identical entry first.
// Empty strings are ignored.
func (h *History) Add(text string) {
	if text == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]string, 0, len(h.entries)+1)
	next = append(next, text)
	for _, e := range h.entries {
		if e != text {
			next = append(next, e)
		}
	}
	if len(next) > h.capacity {
		next = next[:h.capacity]
	}
	h.entries = next
}

// Entries returns a copy of the history, most recent first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored utterances.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
