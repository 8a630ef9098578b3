package session

import "github.com/guideforge/engine/events"

// ringBuffer is a fixed-capacity FIFO of events. Pushes past capacity evict
// the oldest buffered event; live subscribers are unaffected since they
// receive events directly, not from the buffer.
type ringBuffer struct {
	items []events.Event
	cap   int
	start int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{cap: capacity}
}

func (b *ringBuffer) push(e events.Event) {
	if len(b.items) < b.cap {
		b.items = append(b.items, e)
		return
	}
	// Evict oldest: overwrite at start, advance start.
	b.items[b.start] = e
	b.start = (b.start + 1) % b.cap
}

// snapshot returns buffered events in append order.
func (b *ringBuffer) snapshot() []events.Event {
	if len(b.items) < b.cap {
		out := make([]events.Event, len(b.items))
		copy(out, b.items)
		return out
	}
	out := make([]events.Event, 0, b.cap)
	out = append(out, b.items[b.start:]...)
	out = append(out, b.items[:b.start]...)
	return out
}
