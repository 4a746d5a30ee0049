package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aturbins/hushwire/internal/client/api"
	"github.com/aturbins/hushwire/internal/client/realtime"
	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/msgcipher"
)

// PlainMessage is a decrypted, signature-checked message ready for display.
type PlainMessage struct {
	ID       string
	ChatID   string
	SenderID string
	Text     string
	SentAt   time.Time
	Mine     bool
}

// ChatService seals outgoing messages and opens incoming ones on behalf of
// one logged-in session. It owns the realtime connection.
type ChatService struct {
	api     *api.Client
	session *Session

	conn *realtime.Conn
}

func NewChatService(client *api.Client, session *Session) *ChatService {
	return &ChatService{api: client, session: session}
}

// Connect dials the realtime channel with the current access token. Safe to
// call again after a disconnect.
func (c *ChatService) Connect(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close()
	}
	conn, err := realtime.Dial(ctx, c.api.WebSocketURL(), c.api.AccessToken())
	if err != nil {
		return fmt.Errorf("realtime connect: %w", err)
	}
	c.conn = conn
	return nil
}

// Events exposes the realtime channel; nil before Connect.
func (c *ChatService) Events() <-chan *realtime.Event {
	if c.conn == nil {
		return nil
	}
	return c.conn.Events()
}

// EnsureChat opens (or finds) the chat with a peer named by username or
// email.
func (c *ChatService) EnsureChat(ctx context.Context, peerIdentifier string) (*api.Chat, error) {
	return c.api.EnsureChat(ctx, peerIdentifier)
}

// ListChats returns the session's chats with unread counters.
func (c *ChatService) ListChats(ctx context.Context) ([]*api.Chat, error) {
	return c.api.ListChats(ctx)
}

// SendText seals the text for the chat's peer and pushes it over the
// realtime channel. The plaintext never touches the wire.
func (c *ChatService) SendText(chat *api.Chat, text string) error {
	if c.conn == nil {
		return common.ErrorNotConnected
	}
	if chat.Peer == nil {
		return fmt.Errorf("chat %s: peer keys unknown", chat.ChatID)
	}

	ring := c.session.Ring
	identityPub := ring.IdentityPublic()
	env, err := msgcipher.Seal([]byte(text),
		ring.IdentityPrivate(), identityPub[:],
		chat.Peer.PublicIdentityKey, ring.SigningPrivate())
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	return c.conn.SendMessage(&realtime.SendMessageParams{
		ChatID:              chat.ChatID,
		Ciphertext:          env.Ciphertext,
		Nonce:               env.Nonce,
		Signature:           env.Signature,
		SenderIdentityKey:   env.SenderIdentityKey,
		ReceiverIdentityKey: env.ReceiverIdentityKey,
		SenderSigningKey:    env.SenderSigningKey,
		SentAt:              env.SentAt,
	})
}

// MarkRead resets the chat's unread counter over the realtime channel.
func (c *ChatService) MarkRead(chatID string) error {
	if c.conn == nil {
		return common.ErrorNotConnected
	}
	return c.conn.MarkRead(chatID)
}

// unavailableText replaces the body of messages that fail verification or
// decryption. They render as placeholders instead of crashing the view.
const unavailableText = "(message unavailable)"

// History fetches and decrypts the recent messages of a chat, oldest first.
func (c *ChatService) History(ctx context.Context, chatID string) ([]*PlainMessage, error) {
	msgs, err := c.api.History(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]*PlainMessage, 0, len(msgs))
	for _, m := range msgs {
		pm, err := c.Decrypt(m)
		if err != nil {
			pm = &PlainMessage{
				ID:       m.ID,
				ChatID:   m.ChatID,
				SenderID: m.SenderID,
				Text:     unavailableText,
				SentAt:   m.SentAt,
				Mine:     m.SenderID == c.session.UserID,
			}
		}
		out = append(out, pm)
	}
	return out, nil
}

// Decrypt verifies and opens one stored envelope with the session's keys.
// DH symmetry makes the same call work for sent and received messages.
func (c *ChatService) Decrypt(m *api.Message) (*PlainMessage, error) {
	env := &msgcipher.Envelope{
		Ciphertext:          m.Ciphertext,
		Nonce:               m.Nonce,
		Signature:           m.Signature,
		SenderIdentityKey:   m.SenderIdentityKey,
		ReceiverIdentityKey: m.ReceiverIdentityKey,
		SenderSigningKey:    m.SenderSigningKey,
	}
	if err := msgcipher.Verify(env); err != nil {
		return nil, err
	}

	ring := c.session.Ring
	identityPub := ring.IdentityPublic()
	text, err := msgcipher.Open(env, ring.IdentityPrivate(), identityPub[:])
	if err != nil {
		return nil, err
	}

	return &PlainMessage{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.SenderID,
		Text:     string(text),
		SentAt:   m.SentAt,
		Mine:     m.SenderID == c.session.UserID,
	}, nil
}

// Close tears down the realtime connection if one is up.
func (c *ChatService) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
