package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/dbx"
	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/repositories/repomanager"
)

// MessagePusher delivers a stored message to the receiver's live connection,
// if one exists. Returns false when the receiver is offline or the push
// failed; the message is already durable either way.
type MessagePusher interface {
	PushMessage(ctx context.Context, userID string, msg *models.Message) bool
}

// SendMessageParams is the ciphertext envelope a sender submits. The
// receiver is derived from the chat, never trusted from the client.
type SendMessageParams struct {
	ChatID string

	Ciphertext []byte
	Nonce      []byte
	Signature  []byte

	SenderIdentityKey   []byte
	ReceiverIdentityKey []byte
	SenderSigningKey    []byte

	SentAt time.Time
}

// ChatSummary pairs a chat with the caller's view of it.
type ChatSummary struct {
	Chat   *models.Chat
	PeerID string
	Unread int64
}

// DeliveryService owns the send/read path: persistence first, counters
// second, live push last.
type DeliveryService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	pusher       MessagePusher
	logger       logging.Logger
	historyLimit int
}

func NewDeliveryService(db *sql.DB, m repomanager.RepositoryManager, pusher MessagePusher, logger logging.Logger, cfg *config.Config) *DeliveryService {
	return &DeliveryService{
		db:           db,
		repomanager:  m,
		pusher:       pusher,
		logger:       logger,
		historyLimit: cfg.HistoryLimit,
	}
}

// EnsureChat returns the chat between the caller and the peer, creating it
// on first contact.
func (s *DeliveryService) EnsureChat(ctx context.Context, userID, peerID string) (*models.Chat, error) {
	repo := s.repomanager.Chats(s.db)
	chat, err := repo.GetOrCreate(ctx, userID, peerID)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, common.ErrorValidation
		}
		return nil, fmt.Errorf("error ensuring chat: %w", err)
	}
	return chat, nil
}

// SendMessage persists the envelope, bumps the receiver's unread counter in
// the same transaction, and only then attempts a live push. A failed push
// is not an error: the receiver finds the message in history and the
// counter already reflects it.
func (s *DeliveryService) SendMessage(ctx context.Context, senderID string, p *SendMessageParams) (*models.Message, error) {
	chat, err := s.loadChatFor(ctx, senderID, p.ChatID)
	if err != nil {
		return nil, err
	}
	receiverID := chat.OtherParticipant(senderID)

	msg := &models.Message{
		ChatID:              chat.ID,
		SenderID:            senderID,
		ReceiverID:          receiverID,
		Ciphertext:          p.Ciphertext,
		Nonce:               p.Nonce,
		Signature:           p.Signature,
		SenderIdentityKey:   p.SenderIdentityKey,
		ReceiverIdentityKey: p.ReceiverIdentityKey,
		SenderSigningKey:    p.SenderSigningKey,
		SentAt:              p.SentAt,
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Messages(tx).Create(ctx, msg); err != nil {
			return fmt.Errorf("error storing message: %w", err)
		}
		if err := s.repomanager.Chats(tx).IncrementUnread(ctx, chat.ID, receiverID); err != nil {
			return fmt.Errorf("error incrementing unread: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !s.pusher.PushMessage(ctx, receiverID, msg) {
		s.logger.Debug(ctx, "receiver offline, message stored", "chat_id", chat.ID)
	}

	return msg, nil
}

// MarkRead zeroes the caller's unread counter for the chat.
func (s *DeliveryService) MarkRead(ctx context.Context, userID, chatID string) error {
	chat, err := s.loadChatFor(ctx, userID, chatID)
	if err != nil {
		return err
	}

	repo := s.repomanager.Chats(s.db)
	if err := repo.ResetUnread(ctx, chat.ID, userID); err != nil {
		return fmt.Errorf("error resetting unread: %w", err)
	}
	return nil
}

// History returns the most recent messages of the chat in ascending order.
func (s *DeliveryService) History(ctx context.Context, userID, chatID string) ([]*models.Message, error) {
	chat, err := s.loadChatFor(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Messages(s.db)
	msgs, err := repo.ListByChat(ctx, chat.ID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}
	return msgs, nil
}

// ListChats returns the caller's chats with their unread counts.
func (s *DeliveryService) ListChats(ctx context.Context, userID string) ([]*ChatSummary, error) {
	repo := s.repomanager.Chats(s.db)

	list, err := repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}

	summaries := make([]*ChatSummary, 0, len(list))
	for _, chat := range list {
		unread, err := repo.GetUnread(ctx, chat.ID, userID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("error loading unread count: %w", err)
		}
		summaries = append(summaries, &ChatSummary{
			Chat:   chat,
			PeerID: chat.OtherParticipant(userID),
			Unread: unread,
		})
	}
	return summaries, nil
}

// loadChatFor fetches the chat and enforces membership.
func (s *DeliveryService) loadChatFor(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	repo := s.repomanager.Chats(s.db)

	chat, err := repo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading chat: %w", err)
	}
	if !chat.HasParticipant(userID) {
		return nil, common.ErrNotAParticipant
	}
	return chat, nil
}
