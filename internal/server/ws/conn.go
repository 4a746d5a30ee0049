package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 256 * 1024
	sendBufferSize = 32
)

var errConnClosed = errors.New("ws: connection closed")

// conn wraps one WebSocket with a buffered outbound queue. All writes go
// through the write pump; Send and Close are safe from any goroutine.
type conn struct {
	id string
	ws *websocket.Conn

	send chan any

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan any, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues v for delivery. A closed connection or a full queue drops the
// frame; durable state lives in the database, not in this buffer.
func (c *conn) Send(v any) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- v:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errors.New("ws: send buffer full")
	}
}

func (c *conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// writePump serializes all writes to the socket and keeps the connection
// alive with pings. Runs until Close or a write failure.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readFrame reads one frame, refreshing the read deadline.
func (c *conn) readFrame() (*Frame, error) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	f := &Frame{}
	if err := c.ws.ReadJSON(f); err != nil {
		return nil, err
	}
	return f, nil
}
