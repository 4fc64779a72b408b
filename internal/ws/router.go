package ws

import (
	"context"
	"sync"
)

type HandlerFunc func(ctx context.Context, ev Event) Response

// Router maps an event kind to its handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[EventKind]HandlerFunc
}

func NewRouter() *Router { return &Router{handlers: make(map[EventKind]HandlerFunc)} }

func (r *Router) Handle(kind EventKind, h HandlerFunc) {
	if kind == "" {
		panic("ws router: empty event kind")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.handlers[kind]; dup {
		panic("ws router: duplicate handler for " + string(kind))
	}
	r.handlers[kind] = h
}

// Dispatch is the single entry point for every event.
func (r *Router) Dispatch(ctx context.Context, ev Event) Response {
	r.mu.RLock()
	h, ok := r.handlers[ev.Kind]
	r.mu.RUnlock()
	if !ok {
		return Fail("unknown_event")
	}
	return h(ctx, ev)
}
