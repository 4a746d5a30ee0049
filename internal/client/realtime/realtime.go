// Package realtime is the client side of the WebSocket channel: it
// authenticates with the first frame, then exposes incoming events on a
// channel while serializing outgoing frames.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aturbins/hushwire/internal/client/api"
)

// Frame types, mirroring the server's realtime protocol.
const (
	eventAuth            = "auth"
	eventSendMessage     = "send_message"
	eventMarkRead        = "mark_read"
	EventMessageReceived = "message_received"
	EventMessageSent     = "message_sent"
	EventError           = "error"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authPayload struct {
	Token string `json:"token"`
}

// SendMessageParams is the sealed envelope for one outgoing message.
type SendMessageParams struct {
	ChatID              string    `json:"chatId"`
	Ciphertext          []byte    `json:"ciphertext"`
	Nonce               []byte    `json:"nonce"`
	Signature           []byte    `json:"signature"`
	SenderIdentityKey   []byte    `json:"senderIdentityKey"`
	ReceiverIdentityKey []byte    `json:"receiverIdentityKey"`
	SenderSigningKey    []byte    `json:"senderSigningKey"`
	SentAt              time.Time `json:"sentAt"`
}

type markReadPayload struct {
	ChatID string `json:"chatId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Event is one decoded server frame. Message is set for message events,
// Reason for error events.
type Event struct {
	Type    string
	Message *api.Message
	Reason  string
}

// Conn is an authenticated realtime connection.
type Conn struct {
	ws     *websocket.Conn
	events chan *Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects, authenticates with the access token, and starts the read
// loop. The returned connection's Events channel closes when the server
// goes away or Close is called.
func Dial(ctx context.Context, url, accessToken string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		ws:     ws,
		events: make(chan *Event, 32),
		done:   make(chan struct{}),
	}

	if err := c.writeFrame(eventAuth, &authPayload{Token: accessToken}); err != nil {
		ws.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// Events delivers decoded server frames in arrival order.
func (c *Conn) Events() <-chan *Event { return c.events }

// SendMessage queues one sealed envelope.
func (c *Conn) SendMessage(p *SendMessageParams) error {
	return c.writeFrame(eventSendMessage, p)
}

// MarkRead tells the server the chat has been read.
func (c *Conn) MarkRead(chatID string) error {
	return c.writeFrame(eventMarkRead, &markReadPayload{ChatID: chatID})
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writeFrame(eventType string, payload any) error {
	select {
	case <-c.done:
		return errors.New("realtime: connection closed")
	default:
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(&frame{Type: eventType, Payload: raw})
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.events)
		c.Close()
	}()

	for {
		f := &frame{}
		if err := c.ws.ReadJSON(f); err != nil {
			return
		}

		switch f.Type {
		case EventMessageReceived, EventMessageSent:
			msg := &api.Message{}
			if err := json.Unmarshal(f.Payload, msg); err != nil {
				continue
			}
			c.deliver(&Event{Type: f.Type, Message: msg})
		case EventError:
			p := &errorPayload{}
			if err := json.Unmarshal(f.Payload, p); err != nil {
				continue
			}
			c.deliver(&Event{Type: EventError, Reason: p.Message})
		}
	}
}

func (c *Conn) deliver(e *Event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}
