package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tutorrelay/pkg/types"
)

const (
	defaultBufferSize   = 100
	defaultWriteTimeout = 5 * time.Second
)

// Connection wraps a websocket with a single writer goroutine. All outbound
// frames go through writeCh; gorilla connections support one concurrent
// writer only.
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu    sync.RWMutex
	names map[types.Role]string
}

// NewConnection wraps conn and starts its writer. A non-positive bufferSize
// or writeTimeout falls back to the defaults.
func NewConnection(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.NewString(),
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		names:        make(map[types.Role]string),
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the connection's process-unique id.
func (c *Connection) ID() string {
	return c.id
}

// Send marshals v and queues it for the writer without blocking.
func (c *Connection) Send(v interface{}) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrBufferFull
	}
}

// TrySend is Send reduced to whether the frame was queued.
func (c *Connection) TrySend(v interface{}) bool {
	return c.Send(v) == nil
}

// IsOpen reports whether the connection has not been closed.
func (c *Connection) IsOpen() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Done is closed when the connection closes.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// BindName records the directory key this connection holds for role.
func (c *Connection) BindName(role types.Role, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[role] = key
}

// BoundName returns the directory key recorded for role.
func (c *Connection) BoundName(role types.Role) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[role]
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
