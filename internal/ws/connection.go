// Package ws adapts WebSocket connections to the room coordinator: it
// upgrades HTTP requests, wraps each socket behind a single-writer send
// queue, and pumps inbound frames into the connection's room.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type outFrame struct {
	messageType int
	data        []byte
}

// Connection wraps a WebSocket socket behind a buffered send queue drained
// by a single writer goroutine. gorilla permits one concurrent writer per
// socket; serializing all data frames through the queue also preserves
// delivery order per connection. It implements session.Peer.
type Connection struct {
	conn         *websocket.Conn
	sendCh       chan outFrame
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		sendCh:       make(chan outFrame, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a frame for delivery. It never blocks the caller: a full
// queue means the client stopped reading, and the returned error lets the
// room evict the session instead of stalling the whole room.
func (c *Connection) Send(binary bool, data []byte) error {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.sendCh <- outFrame{messageType: messageType, data: data}:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame with the given code and reason, then tears the
// socket down. Safe to call more than once.
func (c *Connection) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeTimeout)
		// Best effort; the peer may already be gone.
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }
