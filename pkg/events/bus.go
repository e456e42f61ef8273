package events

import (
	"sync"

	"loyaltyStamp/domain"
)

// Bus is a small in-process publish/subscribe boundary for state-change
// notifications. Publishing never blocks: a subscriber that cannot keep up
// misses events rather than stalling the core.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan domain.StateEvent
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan domain.StateEvent),
	}
}

// Subscribe returns a channel receiving events for one topic plus an
// unsubscribe function.
func (b *Bus) Subscribe(topic string) (<-chan domain.StateEvent, func()) {
	ch := make(chan domain.StateEvent, 16)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		chans := b.subs[topic]
		for i, c := range chans {
			if c == ch {
				b.subs[topic] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}

	return ch, cancel
}

// Publish fans the event out to current subscribers of its topic.
func (b *Bus) Publish(event domain.StateEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Topic] {
		select {
		case ch <- event:
		default:
		}
	}
}
