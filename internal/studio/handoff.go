package studio

import (
	"image"
	"sync"
)

// Well-known handoff names.
const (
	HandoffCanvas = "canvas"
	HandoffPuff   = "puff"
)

// Handoff shares named images between independent consumers, such as the
// canvas view and a 3D preview. Published images are read-only.
type Handoff struct {
	mu     sync.RWMutex
	images map[string]image.Image
	subs   map[string]map[chan image.Image]struct{}
}

func NewHandoff() *Handoff {
	return &Handoff{
		images: make(map[string]image.Image),
		subs:   make(map[string]map[chan image.Image]struct{}),
	}
}

// Publish stores img under name and notifies subscribers. Slow
// subscribers only see the newest image.
func (h *Handoff) Publish(name string, img image.Image) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.images[name] = img
	for ch := range h.subs[name] {
		select {
		case <-ch:
		default:
		}
		ch <- img
	}
}

func (h *Handoff) Get(name string) (image.Image, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	img, ok := h.images[name]
	return img, ok
}

// Subscribe returns a channel receiving every image published under name
// and a function that ends the subscription and closes the channel.
func (h *Handoff) Subscribe(name string) (<-chan image.Image, func()) {
	ch := make(chan image.Image, 1)

	h.mu.Lock()
	if h.subs[name] == nil {
		h.subs[name] = make(map[chan image.Image]struct{})
	}
	h.subs[name][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[name], ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
