package observe

import "sync"

// Hub fans out change notifications to subscribers. Listeners are invoked
// synchronously on the publishing goroutine, outside of any store lock.
type Hub struct {
	mu        sync.Mutex
	nextId    int
	listeners map[int]func()
}

// Subscribe registers fn and returns a function that removes it again.
func (h *Hub) Subscribe(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners == nil {
		h.listeners = make(map[int]func())
	}
	id := h.nextId
	h.nextId++
	h.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners))
	for i := 0; i < h.nextId; i++ {
		if fn, ok := h.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
