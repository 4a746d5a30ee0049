// Package ws implements the realtime channel: one authenticated WebSocket
// per user, carrying message and read-state events both ways.
package ws

import (
	"encoding/json"
	"time"

	"github.com/aturbins/hushwire/internal/server/models"
)

// Frame types. The first client frame must be EventAuth; everything else is
// rejected until the connection is authenticated.
const (
	EventAuth            = "auth"
	EventSendMessage     = "send_message"
	EventMarkRead        = "mark_read"
	EventMessageReceived = "message_received"
	EventMessageSent     = "message_sent"
	EventError           = "error"
)

// Frame is the wire envelope for every event in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newFrame(eventType string, payload any) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: eventType, Payload: raw}, nil
}

type AuthPayload struct {
	Token string `json:"token"`
}

// SendMessagePayload is the client's sealed envelope. Byte fields travel as
// base64 per encoding/json convention.
type SendMessagePayload struct {
	ChatID              string    `json:"chatId"`
	Ciphertext          []byte    `json:"ciphertext"`
	Nonce               []byte    `json:"nonce"`
	Signature           []byte    `json:"signature"`
	SenderIdentityKey   []byte    `json:"senderIdentityKey"`
	ReceiverIdentityKey []byte    `json:"receiverIdentityKey"`
	SenderSigningKey    []byte    `json:"senderSigningKey"`
	SentAt              time.Time `json:"sentAt"`
}

type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}

// MessagePayload is the stored message as pushed to the receiver or acked
// to the sender.
type MessagePayload struct {
	ID                  string    `json:"id"`
	ChatID              string    `json:"chatId"`
	SenderID            string    `json:"senderId"`
	ReceiverID          string    `json:"receiverId"`
	Ciphertext          []byte    `json:"ciphertext"`
	Nonce               []byte    `json:"nonce"`
	Signature           []byte    `json:"signature"`
	SenderIdentityKey   []byte    `json:"senderIdentityKey"`
	ReceiverIdentityKey []byte    `json:"receiverIdentityKey"`
	SenderSigningKey    []byte    `json:"senderSigningKey"`
	SentAt              time.Time `json:"sentAt"`
	CreatedAt           time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func messageToPayload(m *models.Message) *MessagePayload {
	return &MessagePayload{
		ID:                  m.ID,
		ChatID:              m.ChatID,
		SenderID:            m.SenderID,
		ReceiverID:          m.ReceiverID,
		Ciphertext:          m.Ciphertext,
		Nonce:               m.Nonce,
		Signature:           m.Signature,
		SenderIdentityKey:   m.SenderIdentityKey,
		ReceiverIdentityKey: m.ReceiverIdentityKey,
		SenderSigningKey:    m.SenderSigningKey,
		SentAt:              m.SentAt,
		CreatedAt:           m.CreatedAt,
	}
}
