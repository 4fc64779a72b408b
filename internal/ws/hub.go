package ws

import (
	"context"
	"sync"

	"roomrelay/internal/services/broadcast"
)

// Hub is the table of connections held by this process. It implements
// broadcast.Transport: local peers are written directly, the rest go over
// the Redis bus when one is configured.
type Hub struct {
	conns sync.Map // connID -> *clientConn
	bus   *Bus
}

var _ broadcast.Transport = (*Hub)(nil)

func NewHub() *Hub { return &Hub{} }

// UseBus enables cross-instance delivery.
func (h *Hub) UseBus(b *Bus) { h.bus = b }

func (h *Hub) Send(ctx context.Context, connID string, payload []byte) error {
	if v, ok := h.conns.Load(connID); ok {
		return v.(*clientConn).write(textMessage, payload)
	}
	if h.bus != nil {
		return h.bus.Publish(ctx, connID, payload)
	}
	return broadcast.ErrPeerGone
}

// deliverLocal is called by the bus for frames published by other instances.
func (h *Hub) deliverLocal(connID string, payload []byte) error {
	v, ok := h.conns.Load(connID)
	if !ok {
		return broadcast.ErrPeerGone
	}
	return v.(*clientConn).write(textMessage, payload)
}

func (h *Hub) reserve(connID string) *clientConn {
	c, _ := h.conns.LoadOrStore(connID, newClientConn(connID))
	return c.(*clientConn)
}

func (h *Hub) release(connID string) {
	if v, ok := h.conns.LoadAndDelete(connID); ok {
		v.(*clientConn).close()
	}
}

// Len is the number of connections held by this process.
func (h *Hub) Len() int {
	n := 0
	h.conns.Range(func(any, any) bool { n++; return true })
	return n
}
