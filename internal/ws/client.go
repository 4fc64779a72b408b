package ws

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"roomrelay/internal/services/broadcast"

	"github.com/gorilla/websocket"
)

// maxPending bounds frames queued for a connection that is admitted but
// not upgraded yet.
const maxPending = 32

var errBacklogFull = errors.New("pending backlog full")

type clientConn struct {
	id      string
	rawConn *websocket.Conn // nil until attach
	pending [][]byte
	closed  bool
	done    chan struct{}
	mu      sync.Mutex
}

func newClientConn(id string) *clientConn {
	return &clientConn{id: id, done: make(chan struct{})}
}

// attach binds the upgraded socket, writes ack and then flushes frames
// queued meanwhile, so the ack is always the first frame the client sees.
func (c *clientConn) attach(raw *websocket.Conn, ack any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return broadcast.ErrPeerGone
	}
	c.rawConn = raw
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.rawConn.WriteJSON(ack); err != nil {
		c.pending = nil
		return classifyWriteErr(err)
	}
	for _, msg := range c.pending {
		_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.pending = nil
			return classifyWriteErr(err)
		}
	}
	c.pending = nil
	return nil
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return broadcast.ErrPeerGone
	}
	if c.rawConn == nil {
		if len(c.pending) >= maxPending {
			return errBacklogFull
		}
		c.pending = append(c.pending, append([]byte(nil), data...))
		return nil
	}

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return classifyWriteErr(c.rawConn.WriteMessage(mt, data)) // Text/Binary only
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.rawConn == nil {
		return broadcast.ErrPeerGone
	}
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return classifyWriteErr(c.rawConn.WriteJSON(v))
}

func (c *clientConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.rawConn != nil {
		_ = c.rawConn.Close()
	}
}

// classifyWriteErr tags errors that mean the peer socket is gone so the
// dispatcher reconciles instead of retrying.
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var ce *websocket.CloseError
	if errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", broadcast.ErrPeerGone, err)
	}
	return err
}
