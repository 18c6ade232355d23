package services

import (
	"context"
	"log"
	"sync"
)

// EventHub fans ledger events out to live subscribers (the /api/events stream).
// Slow subscribers miss events rather than block the publisher.
type EventHub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

func NewEventHub(buffer int) *EventHub {
	if buffer < 1 {
		buffer = 16
	}
	return &EventHub{subs: make(map[int]chan Event), buffer: buffer}
}

var _ Notifier = (*EventHub)(nil)

// Notify delivers ev to every subscriber without waiting.
func (h *EventHub) Notify(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[EVENTS] ⚠️ subscriber %d is full, dropped %s", id, ev.ID)
		}
	}
	return nil
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// MultiNotifier sends every event to each notifier in turn and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
