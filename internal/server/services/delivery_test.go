package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/server/models"
)

// --- fakes shared with users_test.go via fakeRepoManager ---

type fakeChatsRepo struct {
	mu     sync.Mutex
	seq    int
	chats  map[string]*models.Chat
	unread map[string]int64 // chatID|userID
}

func newFakeChatsRepo() *fakeChatsRepo {
	return &fakeChatsRepo{
		chats:  make(map[string]*models.Chat),
		unread: make(map[string]int64),
	}
}

func counterKey(chatID, userID string) string { return chatID + "|" + userID }

func (f *fakeChatsRepo) GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error) {
	if userA == userB {
		return nil, common.ErrorValidation
	}
	lo, hi := models.NormalizePair(userA, userB)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.UserLo == lo && c.UserHi == hi {
			return c, nil
		}
	}
	f.seq++
	c := &models.Chat{ID: fmt.Sprintf("c-%d", f.seq), UserLo: lo, UserHi: hi, CreatedAt: time.Now()}
	f.chats[c.ID] = c
	f.unread[counterKey(c.ID, lo)] = 0
	f.unread[counterKey(c.ID, hi)] = 0
	return c, nil
}

func (f *fakeChatsRepo) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[id]; ok {
		return c, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeChatsRepo) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Chat
	for _, c := range f.chats {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChatsRepo) IncrementUnread(ctx context.Context, chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := counterKey(chatID, userID)
	if _, ok := f.unread[key]; !ok {
		return common.ErrorNotFound
	}
	f.unread[key]++
	return nil
}

func (f *fakeChatsRepo) ResetUnread(ctx context.Context, chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := counterKey(chatID, userID)
	if _, ok := f.unread[key]; !ok {
		return common.ErrorNotFound
	}
	f.unread[key] = 0
	return nil
}

func (f *fakeChatsRepo) GetUnread(ctx context.Context, chatID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.unread[counterKey(chatID, userID)]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return n, nil
}

type fakeMessagesRepo struct {
	mu   sync.Mutex
	seq  int
	rows []*models.Message
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{}
}

func (f *fakeMessagesRepo) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	msg.ID = fmt.Sprintf("m-%d", f.seq)
	msg.CreatedAt = time.Now()
	f.rows = append(f.rows, msg)
	return msg, nil
}

func (f *fakeMessagesRepo) ListByChat(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.rows {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type pushRecord struct {
	userID string
	unread int64 // receiver's counter at push time
	msgID  string
}

type fakePusher struct {
	mu     sync.Mutex
	online map[string]bool
	chats  *fakeChatsRepo
	pushes []pushRecord
}

func (p *fakePusher) PushMessage(ctx context.Context, userID string, msg *models.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	unread, _ := p.chats.GetUnread(ctx, msg.ChatID, userID)
	p.pushes = append(p.pushes, pushRecord{userID: userID, unread: unread, msgID: msg.ID})
	return p.online[userID]
}

func newDeliveryService(t *testing.T) (*DeliveryService, *fakeRepoManager, *fakePusher, func()) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	// SendMessage runs its two writes inside one transaction.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	rm := newFakeRepoManager()
	pusher := &fakePusher{online: make(map[string]bool), chats: rm.chats}
	svc := NewDeliveryService(db, rm, pusher, logging.NewSlogLogger(slog.Default()), testConfig())
	return svc, rm, pusher, func() { db.Close() }
}

func envelopeParams(chatID string) *SendMessageParams {
	return &SendMessageParams{
		ChatID:              chatID,
		Ciphertext:          []byte("ct"),
		Nonce:               []byte("nonce"),
		Signature:           []byte("sig"),
		SenderIdentityKey:   []byte("spk"),
		ReceiverIdentityKey: []byte("rpk"),
		SenderSigningKey:    []byte("ssk"),
	}
}

// --- tests ---

func TestEnsureChat_Commutative(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	c1, err := svc.EnsureChat(ctx, "u-a", "u-b")
	if err != nil {
		t.Fatalf("EnsureChat error: %v", err)
	}
	c2, err := svc.EnsureChat(ctx, "u-b", "u-a")
	if err != nil {
		t.Fatalf("EnsureChat error: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("participant order produced different chats: %s vs %s", c1.ID, c2.ID)
	}
}

func TestEnsureChat_WithSelf(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()

	_, err := svc.EnsureChat(context.Background(), "u-a", "u-a")
	if !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want common.ErrorValidation, got %v", err)
	}
}

func TestSendMessage_PersistsThenPushes(t *testing.T) {
	svc, rm, pusher, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")
	pusher.online["u-b"] = true

	msg, err := svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID))
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
	if msg.ID == "" || msg.ReceiverID != "u-b" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if len(pusher.pushes) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.pushes))
	}
	// The counter was already incremented when the push happened.
	if pusher.pushes[0].unread != 1 {
		t.Fatalf("push observed unread=%d, want 1", pusher.pushes[0].unread)
	}
	if pusher.pushes[0].msgID != msg.ID {
		t.Fatalf("pushed a different message")
	}

	stored, _ := rm.messages.ListByChat(ctx, chat.ID, 10)
	if len(stored) != 1 {
		t.Fatalf("message not persisted")
	}
}

func TestSendMessage_OfflineReceiverStillStored(t *testing.T) {
	svc, rm, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")

	if _, err := svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID)); err != nil {
		t.Fatalf("SendMessage must succeed with offline receiver: %v", err)
	}

	unread, _ := rm.chats.GetUnread(ctx, chat.ID, "u-b")
	if unread != 1 {
		t.Fatalf("unread=%d, want 1", unread)
	}
}

func TestSendMessage_NotAParticipant(t *testing.T) {
	svc, _, pusher, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")

	_, err := svc.SendMessage(ctx, "u-intruder", envelopeParams(chat.ID))
	if !errors.Is(err, common.ErrNotAParticipant) {
		t.Fatalf("want common.ErrNotAParticipant, got %v", err)
	}
	if len(pusher.pushes) != 0 {
		t.Fatalf("rejected send must not push")
	}
}

func TestSendMessage_UnknownChat(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()

	_, err := svc.SendMessage(context.Background(), "u-a", envelopeParams("no-such-chat"))
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestMarkRead_ResetsCounter(t *testing.T) {
	svc, rm, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")
	svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID))
	svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID))

	if err := svc.MarkRead(ctx, "u-b", chat.ID); err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	unread, _ := rm.chats.GetUnread(ctx, chat.ID, "u-b")
	if unread != 0 {
		t.Fatalf("unread=%d after MarkRead, want 0", unread)
	}
}

func TestMarkRead_NotAParticipant(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")

	err := svc.MarkRead(ctx, "u-intruder", chat.ID)
	if !errors.Is(err, common.ErrNotAParticipant) {
		t.Fatalf("want common.ErrNotAParticipant, got %v", err)
	}
}

func TestHistory_AscendingAndGuarded(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")
	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID)); err != nil {
			t.Fatalf("SendMessage error: %v", err)
		}
	}

	msgs, err := svc.History(ctx, "u-b", chat.ID)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].ID != "m-1" || msgs[2].ID != "m-3" {
		t.Fatalf("history not ascending: %s .. %s", msgs[0].ID, msgs[2].ID)
	}

	if _, err := svc.History(ctx, "u-intruder", chat.ID); !errors.Is(err, common.ErrNotAParticipant) {
		t.Fatalf("want common.ErrNotAParticipant, got %v", err)
	}
}

func TestListChats_Summaries(t *testing.T) {
	svc, _, _, done := newDeliveryService(t)
	defer done()
	ctx := context.Background()

	chat, _ := svc.EnsureChat(ctx, "u-a", "u-b")
	svc.SendMessage(ctx, "u-a", envelopeParams(chat.ID))

	summaries, err := svc.ListChats(ctx, "u-b")
	if err != nil {
		t.Fatalf("ListChats error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].PeerID != "u-a" || summaries[0].Unread != 1 {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
}
