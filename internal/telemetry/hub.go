package telemetry

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/gaitcore/internal/monitoring"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth.
const DefaultSubscriberBuffer = 64

// Hub fans frames out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the frame.
type Hub struct {
	buffer  int
	metrics *monitoring.Metrics

	mu     sync.Mutex
	subs   map[string]chan Frame
	closed bool

	dropped atomic.Uint64
}

// NewHub returns a Hub. metrics may be nil.
func NewHub(buffer int, metrics *monitoring.Metrics) *Hub {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{buffer: buffer, metrics: metrics, subs: make(map[string]chan Frame)}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The channel is closed by Unsubscribe
// or Close.
func (h *Hub) Subscribe() (string, <-chan Frame) {
	id := randomID()
	ch := make(chan Frame, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Publish offers f to every subscriber and returns how many missed it.
func (h *Hub) Publish(f Frame) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	missed := 0
	for _, ch := range h.subs {
		select {
		case ch <- f:
		default:
			missed++
		}
	}
	if missed > 0 {
		h.dropped.Add(uint64(missed))
		if h.metrics != nil {
			h.metrics.TelemetryDropped.Add(float64(missed))
		}
	}
	return missed
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the total number of missed deliveries.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close closes every subscriber channel. Later subscriptions are closed
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
