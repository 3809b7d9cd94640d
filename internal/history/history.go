// Package history keeps a bounded, most-recent-first list of results.
package history

import "sync"

// DefaultCapacity is the number of entries kept when New gets a
// non-positive capacity.
const DefaultCapacity = 10

// History is a FIFO-evicting list safe for concurrent use. Reads never
// reorder entries.
type History[T any] struct {
	mu    sync.Mutex
	items []T // oldest first
	limit int
}

func New[T any](capacity int) *History[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History[T]{items: make([]T, 0, capacity), limit: capacity}
}

// Push adds v as the newest entry, evicting the oldest when full.
func (h *History[T]) Push(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == h.limit {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, v)
}

// Items returns a snapshot, newest first.
func (h *History[T]) Items() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]T, len(h.items))
	for i, v := range h.items {
		out[len(h.items)-1-i] = v
	}
	return out
}

// Latest returns the newest entry.
func (h *History[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[len(h.items)-1], true
}

func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

func (h *History[T]) Cap() int { return h.limit }

func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.items)
	h.items = h.items[:0]
}
