package ws

import (
	"context"

	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/presence"
)

// Hub pushes stored messages to live connections. It satisfies the delivery
// layer's MessagePusher, so it can be constructed before the handler and
// handed to the service.
type Hub struct {
	registry *presence.Registry
	logger   logging.Logger
}

func NewHub(registry *presence.Registry, logger logging.Logger) *Hub {
	return &Hub{registry: registry, logger: logger}
}

func (h *Hub) Registry() *presence.Registry { return h.registry }

// PushMessage sends a message_received frame to the user's active
// connection. Returns false when the user is offline or the frame could not
// be queued; the message is already persisted, so this is best effort.
func (h *Hub) PushMessage(ctx context.Context, userID string, msg *models.Message) bool {
	c, ok := h.registry.Get(userID)
	if !ok {
		return false
	}

	frame, err := newFrame(EventMessageReceived, messageToPayload(msg))
	if err != nil {
		h.logger.Error(ctx, "marshal push frame", "error", err)
		return false
	}
	if err := c.Send(frame); err != nil {
		h.logger.Debug(ctx, "push failed", "user_id", userID, "error", err)
		return false
	}
	return true
}
