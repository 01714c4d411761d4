// Package events implements the broadcast bus (C9) the engine publishes
// PlayerEvents on: a bounded, non-blocking fan-out to 0..N subscribers.
// Events for a slow subscriber are dropped rather than allowed to stall
// emission; the subscriber itself stays registered.
package events

import (
	"sync"

	"github.com/jrmoore/platune/pkg/platune"
)

const busCapacity = 32

// Bus is a multi-producer, multi-consumer broadcaster of PlayerEvents.
// The zero value is not usable; use NewBus.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan platune.PlayerEvent
	next int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan platune.PlayerEvent)}
}

// Subscription is a live subscriber handle; Unsubscribe stops delivery and
// closes Events.
type Subscription struct {
	bus    *Bus
	id     int
	Events <-chan platune.PlayerEvent
}

// Subscribe registers a new subscriber with a bounded buffer. Call
// Unsubscribe when done to free the channel.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan platune.PlayerEvent, busCapacity)
	id := b.next
	b.next++
	b.subs[id] = ch

	return &Subscription{bus: b, id: id, Events: ch}
}

// Unsubscribe removes the subscriber and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if ch, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(ch)
	}
}

// Publish fans the event out to every current subscriber. A subscriber
// whose buffer is full is considered lagged and the event is dropped for
// it rather than blocking the publisher.
func (b *Bus) Publish(evt platune.PlayerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Lagged subscriber: drop rather than block the publisher.
		}
	}
}
