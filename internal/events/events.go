// Package events is the in-process broadcast hub between the tournament
// loop and the live API feed.
package events

import (
	"sync"
	"time"
)

// Event types published by the tournament loop
const (
	TypeGameFinished     = "gameFinished"
	TypeMatchSetFinished = "matchSetFinished"
	TypeRatingsUpdated   = "ratingsUpdated"
)

// Event is one tournament occurrence
type Event struct {
	Type    string    `json:"event"`
	Time    time.Time `json:"time"`
	Payload any       `json:"data,omitempty"`
}

// Hub fans events out to subscribers. Publishing never blocks: slow
// subscribers lose events rather than stalling the tournament.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish broadcasts an event to all current subscribers
func (h *Hub) Publish(eventType string, payload any) {
	e := Event{Type: eventType, Time: time.Now().UTC(), Payload: payload}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its id and channel
func (h *Hub) Subscribe() (int, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, 16)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}
