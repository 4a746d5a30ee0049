package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/server/auth"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/services"
)

const authWait = 10 * time.Second

// Delivery is the slice of the delivery service the realtime channel needs.
type Delivery interface {
	SendMessage(ctx context.Context, senderID string, p *services.SendMessageParams) (*models.Message, error)
	MarkRead(ctx context.Context, userID, chatID string) error
}

// Handler upgrades HTTP requests to authenticated realtime connections.
type Handler struct {
	hub       *Hub
	delivery  Delivery
	jwtSecret []byte
	logger    logging.Logger

	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, delivery Delivery, jwtSecret []byte, logger logging.Logger) *Handler {
	return &Handler{
		hub:       hub,
		delivery:  delivery,
		jwtSecret: jwtSecret,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers are not a target client; tokens gate access.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "ws upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := newConn(ws)
	go c.writePump()

	userID, err := h.authenticate(c)
	if err != nil {
		h.sendError(c, "authentication required")
		c.Close()
		return
	}

	ctx := r.Context()

	// A second login replaces the first connection outright.
	if old := h.hub.registry.Register(ctx, userID, c); old != nil {
		old.Close()
	}
	defer func() {
		h.hub.registry.Unregister(context.Background(), userID, c)
		c.Close()
	}()

	h.logger.Info(ctx, "ws connected", "user_id", userID, "conn_id", c.ID())
	h.readLoop(ctx, userID, c)
	h.logger.Info(ctx, "ws disconnected", "user_id", userID, "conn_id", c.ID())
}

// authenticate requires the first frame to be a valid auth event.
func (h *Handler) authenticate(c *conn) (string, error) {
	c.ws.SetReadDeadline(time.Now().Add(authWait))
	f := &Frame{}
	if err := c.ws.ReadJSON(f); err != nil {
		return "", err
	}
	if f.Type != EventAuth {
		return "", common.ErrorUnauthorized
	}
	p := &AuthPayload{}
	if err := json.Unmarshal(f.Payload, p); err != nil {
		return "", common.ErrorUnauthorized
	}
	userID, err := auth.GetUserIDFromToken(p.Token, auth.KindAccess, h.jwtSecret)
	if err != nil {
		return "", err
	}

	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return userID, nil
}

// readLoop processes client events one at a time, so a connection's sends
// and read-marks apply in the order the client issued them.
func (h *Handler) readLoop(ctx context.Context, userID string, c *conn) {
	for {
		f, err := c.readFrame()
		if err != nil {
			return
		}

		switch f.Type {
		case EventSendMessage:
			h.handleSend(ctx, userID, c, f.Payload)
		case EventMarkRead:
			h.handleMarkRead(ctx, userID, c, f.Payload)
		default:
			h.sendError(c, "unknown event type")
		}
	}
}

func (h *Handler) handleSend(ctx context.Context, userID string, c *conn, raw json.RawMessage) {
	p := &SendMessagePayload{}
	if err := json.Unmarshal(raw, p); err != nil {
		h.sendError(c, "malformed send_message payload")
		return
	}

	msg, err := h.delivery.SendMessage(ctx, userID, &services.SendMessageParams{
		ChatID:              p.ChatID,
		Ciphertext:          p.Ciphertext,
		Nonce:               p.Nonce,
		Signature:           p.Signature,
		SenderIdentityKey:   p.SenderIdentityKey,
		ReceiverIdentityKey: p.ReceiverIdentityKey,
		SenderSigningKey:    p.SenderSigningKey,
		SentAt:              p.SentAt,
	})
	if err != nil {
		h.sendError(c, sendFailureReason(err))
		return
	}

	if frame, err := newFrame(EventMessageSent, messageToPayload(msg)); err == nil {
		c.Send(frame)
	}
}

func (h *Handler) handleMarkRead(ctx context.Context, userID string, c *conn, raw json.RawMessage) {
	p := &MarkReadPayload{}
	if err := json.Unmarshal(raw, p); err != nil {
		h.sendError(c, "malformed mark_read payload")
		return
	}
	if err := h.delivery.MarkRead(ctx, userID, p.ChatID); err != nil {
		h.sendError(c, sendFailureReason(err))
	}
}

func (h *Handler) sendError(c *conn, reason string) {
	if frame, err := newFrame(EventError, &ErrorPayload{Message: reason}); err == nil {
		c.Send(frame)
	}
}

// sendFailureReason maps service errors to client-facing text without
// leaking internals.
func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrNotAParticipant):
		return "not a participant of this chat"
	case errors.Is(err, common.ErrorNotFound):
		return "chat not found"
	case errors.Is(err, common.ErrorValidation):
		return "invalid request"
	default:
		return "operation failed"
	}
}
