package realtime

import "sync"

// Bus is a multi-subscriber in-process event bus. Unlike a single
// onX(callback) slot, every subscriber gets its own channel, so the UI
// forwarder and logging can observe the same events independently.
// Publish never blocks; a subscriber that falls behind drops events.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
	buf  int
}

func NewBus[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = 32
	}
	return &Bus[T]{subs: make(map[int]chan T), buf: buffer}
}

// Subscribe returns a receive channel and a cancel func. Cancel closes
// the channel and detaches the subscriber.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan T, b.buf)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // slow subscriber: drop rather than stall the event path
		}
	}
}

// Close detaches and closes every subscriber channel.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
