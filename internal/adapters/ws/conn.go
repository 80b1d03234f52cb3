package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// wsConn is the outbound half of one WebSocket connection: a bounded
// send channel drained by the write pump. Owned by this adapter; the
// app layer only sees core.ClientConn.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	if buffer <= 0 {
		buffer = 32
	}
	return &wsConn{conn: conn, send: make(chan core.Frame, buffer)}
}

// TrySend enqueues without blocking. A full buffer means the consumer
// is too slow; the frame is dropped for this connection only.
func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrSlowConsumer
	}
	select {
	case c.send <- f:
	default:
		return domain.ErrSlowConsumer
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
