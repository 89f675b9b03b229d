package watch

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Event is a change notification delivered to subscribers.
type Event struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	ProfileName string            `json:"profileName"`
	Permission  string            `json:"permission,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Count       int               `json:"count"`
	At          time.Time         `json:"at"`
}

type subscriber struct {
	id string
	ch chan Event
}

// Hub fans profile changes out to subscribers. It implements profile.Observer;
// Publish never blocks, so a slow subscriber loses events instead of stalling
// store writers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*subscriber
	buffer  int
	dropped atomic.Uint64
}

// NewHub returns a Hub whose subscribers each buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[string]*subscriber), buffer: buffer}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (string, <-chan Event, func()) {
	sub := &subscriber{id: uuid.NewString(), ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub.id)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.id, sub.ch, cancel
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded for full subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ProfileChanged converts the change to an Event and publishes it.
func (h *Hub) ProfileChanged(c profile.Change) {
	evt := Event{
		ID:          uuid.NewString(),
		Kind:        string(c.Kind),
		ProfileName: c.Profile.ProfileName,
		Permission:  c.Permission,
		Count:       c.Count,
		At:          c.At,
	}
	if c.Kind != profile.ChangeDeleted {
		evt.Parameters = c.Profile.Clone().Parameters
	}
	h.Publish(evt)
}

// Publish delivers evt to every subscriber with room in its buffer.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			h.dropped.Add(1)
			log.Printf("[watch] subscriber %s full, dropped event %s", sub.id, evt.ID)
		}
	}
}
