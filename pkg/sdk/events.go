package sdk

import (
	"slices"
	"sync"

	"github.com/terraconstructs/estate/internal/authority"
)

// eventHub delivers auth events to subscribers on a single goroutine, in
// emit order, so handlers may call back into the client.
type eventHub struct {
	mu       sync.Mutex
	handlers map[int]func(authority.AuthEvent)
	nextID   int
	queue    []authority.AuthEvent

	notify    chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newEventHub() *eventHub {
	return &eventHub{
		handlers: make(map[int]func(authority.AuthEvent)),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

type subscription struct {
	once sync.Once
	hub  *eventHub
	id   int
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.handlers, s.id)
		s.hub.mu.Unlock()
	})
}

func (h *eventHub) subscribe(fn func(authority.AuthEvent)) authority.Subscription {
	h.startOnce.Do(func() { go h.run() })

	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.handlers[id] = fn
	return &subscription{hub: h, id: id}
}

// emit queues ev. Events with no subscribers are dropped.
func (h *eventHub) emit(ev authority.AuthEvent) {
	h.mu.Lock()
	if len(h.handlers) == 0 {
		h.mu.Unlock()
		return
	}
	h.queue = append(h.queue, ev)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *eventHub) run() {
	for {
		select {
		case <-h.done:
			return
		case <-h.notify:
		}
		for {
			h.mu.Lock()
			if len(h.queue) == 0 {
				h.mu.Unlock()
				break
			}
			ev := h.queue[0]
			h.queue = h.queue[1:]
			ids := make([]int, 0, len(h.handlers))
			for id := range h.handlers {
				ids = append(ids, id)
			}
			h.mu.Unlock()

			slices.Sort(ids)
			for _, id := range ids {
				h.mu.Lock()
				fn, ok := h.handlers[id]
				h.mu.Unlock()
				if ok {
					fn(ev)
				}
			}
		}
	}
}

func (h *eventHub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
