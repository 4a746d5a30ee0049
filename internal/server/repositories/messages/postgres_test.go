package messages

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aturbins/hushwire/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+messages`
	sentAt := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m-1", sentAt)
	mock.ExpectQuery(q).
		WithArgs("c-1", "u-a", "u-b",
			[]byte("ct"), []byte("nonce"), []byte("sig"),
			[]byte("spk"), []byte("rpk"), []byte("ssk"),
			sentAt).
		WillReturnRows(rows)

	msg := &models.Message{
		ChatID: "c-1", SenderID: "u-a", ReceiverID: "u-b",
		Ciphertext: []byte("ct"), Nonce: []byte("nonce"), Signature: []byte("sig"),
		SenderIdentityKey: []byte("spk"), ReceiverIdentityKey: []byte("rpk"),
		SenderSigningKey: []byte("ssk"),
		SentAt:           sentAt,
	}
	got, err := repo.Create(context.Background(), msg)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "m-1" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+messages`
	mock.ExpectQuery(q).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Message{})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByChat_AscendingOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.*FROM\s+\(\s*SELECT\s+.*FROM\s+messages.*LIMIT\s+\$2.*\)\s+recent`
	t1 := time.Now().Add(-2 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)
	cols := []string{"id", "chat_id", "sender_id", "receiver_id",
		"ciphertext", "nonce", "signature",
		"sender_identity_key", "receiver_identity_key", "sender_signing_key",
		"sent_at", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("m-1", "c-1", "u-a", "u-b", []byte("ct1"), []byte("n1"), []byte("s1"),
			[]byte("spk"), []byte("rpk"), []byte("ssk"), t1, t1).
		AddRow("m-2", "c-1", "u-b", "u-a", []byte("ct2"), []byte("n2"), []byte("s2"),
			[]byte("rpk"), []byte("spk"), []byte("ssk2"), t2, t2)
	mock.ExpectQuery(q).WithArgs("c-1", 50).WillReturnRows(rows)

	got, err := repo.ListByChat(context.Background(), "c-1", 50)
	if err != nil {
		t.Fatalf("ListByChat error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected count: %d", len(got))
	}
	if got[0].ID != "m-1" || got[1].ID != "m-2" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestListByChat_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.*FROM\s+\(`
	cols := []string{"id", "chat_id", "sender_id", "receiver_id",
		"ciphertext", "nonce", "signature",
		"sender_identity_key", "receiver_identity_key", "sender_signing_key",
		"sent_at", "created_at"}
	mock.ExpectQuery(q).WithArgs("c-1", 50).WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ListByChat(context.Background(), "c-1", 50)
	if err != nil {
		t.Fatalf("ListByChat error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d rows", len(got))
	}
}
