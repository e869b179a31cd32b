package moderation

import "sync"

// RingBuffer is a bounded FIFO of id/value pairs with drop-oldest
// eviction. It is owned by its consumer rather than process-global so
// independent instances never interfere. The mutex is required: the
// discordgo handler model runs one goroutine per event.
type RingBuffer struct {
	mu       sync.Mutex
	capacity int
	order    []string
	values   map[string]string
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		capacity: capacity,
		values:   make(map[string]string, capacity),
	}
}

// Put stores or replaces the value for an id.
func (b *RingBuffer) Put(id, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(id, value)
}

// Get returns the stored value for an id.
func (b *RingBuffer) Get(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[id]
	return value, ok
}

// Remember reports whether the id is already stored with the same
// value, recording the pair either way.
func (b *RingBuffer) Remember(id, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.values[id]; ok && existing == value {
		return true
	}
	b.put(id, value)
	return false
}

// Drop removes an id, returning its value when present.
func (b *RingBuffer) Drop(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[id]
	if !ok {
		return "", false
	}
	delete(b.values, id)
	for i, stored := range b.order {
		if stored == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return value, true
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

func (b *RingBuffer) put(id, value string) {
	if _, ok := b.values[id]; !ok {
		b.order = append(b.order, id)
	}
	b.values[id] = value
	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.values, oldest)
	}
}
