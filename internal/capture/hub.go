package capture

import (
	"sync"
	"sync/atomic"
)

// hub fans values out to subscriber channels. Publishing never blocks: a
// subscriber whose buffer is full misses the value.
type hub[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	next    uint64
	closed  bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[uint64]chan T)}
}

// subscribe registers a channel with the given buffer. The returned cancel
// function unregisters and closes it; it is safe to call more than once.
func (h *hub[T]) subscribe(buffer int) (<-chan T, func()) {
	ch := make(chan T, max(buffer, 1))

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *hub[T]) publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- v:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub[T]) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
