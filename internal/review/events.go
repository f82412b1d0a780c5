package review

import (
	"fmt"
	"sync"
)

type EventKind string

const (
	EventSnapshot   EventKind = "snapshot"
	EventTransition EventKind = "transition"
	EventArrivals   EventKind = "arrivals"
)

// Event tells surfaces that the partitions changed and why.
type Event struct {
	Kind   EventKind `json:"kind"`
	ID     string    `json:"id,omitempty"`
	Status string    `json:"status,omitempty"`
	Count  int       `json:"count,omitempty"`
}

// Message is the reviewer-facing text of an arrivals notification.
func (e Event) Message() string {
	if e.Kind != EventArrivals {
		return ""
	}
	if e.Count == 1 {
		return "1 new submission arrived"
	}
	return fmt.Sprintf("%d new submissions arrived", e.Count)
}

type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a subscriber whose buffer is full misses the event and
// catches up on the next one, since every event means "re-read the view".
func (h *hub) publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
