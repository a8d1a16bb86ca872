package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatline/pkg/types"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 100
)

// outbound is the wire shape of a server-to-client event.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Connection wraps one WebSocket with a single writer goroutine, so
// concurrent fan-out never interleaves frames. The identity is set once at
// admission and immutable afterwards.
type Connection struct {
	id       string
	conn     *websocket.Conn
	writeCh  chan []byte
	identity types.Identity

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewConnection wraps an upgraded WebSocket and starts its writer.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, sendQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

// ID returns the transport-generated connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// SetIdentity attaches the admitted identity to the session.
func (c *Connection) SetIdentity(identity types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Identity returns the identity attached at admission.
func (c *Connection) Identity() types.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Send queues one named event for delivery. It fails fast when the
// connection is closed and times out rather than block fan-out on a slow
// reader.
func (c *Connection) Send(event string, payload any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		return ErrInvalidPayload
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeWait):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Done is closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close tears down the connection. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
