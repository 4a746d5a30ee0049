package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/opaque"
	"github.com/aturbins/hushwire/internal/server/auth"
	"github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/services"
)

type fakeUserAPI struct {
	registerStartErr  error
	registerFinishErr error
	loginStartErr     error
	loginFinishErr    error
	refreshErr        error
	peerErr           error

	loginResult *services.LoginResult
}

func (f *fakeUserAPI) RegisterStart(ctx context.Context, username, email string, req *opaque.RegistrationRequest) (*opaque.RegistrationResponse, error) {
	if f.registerStartErr != nil {
		return nil, f.registerStartErr
	}
	return &opaque.RegistrationResponse{V: []byte("v"), B: []byte("b"), ServerPublicKey: []byte("spk")}, nil
}

func (f *fakeUserAPI) RegisterFinish(ctx context.Context, p *services.RegisterFinishParams) (*models.User, error) {
	if f.registerFinishErr != nil {
		return nil, f.registerFinishErr
	}
	return &models.User{ID: "u-1", Username: p.Username}, nil
}

func (f *fakeUserAPI) LoginStart(ctx context.Context, identifier string, req *opaque.LoginRequest) (*opaque.LoginResponse, error) {
	if f.loginStartErr != nil {
		return nil, f.loginStartErr
	}
	return &opaque.LoginResponse{V: []byte("v")}, nil
}

func (f *fakeUserAPI) LoginFinish(ctx context.Context, identifier string, fin *opaque.LoginFinish) (*services.LoginResult, error) {
	if f.loginFinishErr != nil {
		return nil, f.loginFinishErr
	}
	return f.loginResult, nil
}

func (f *fakeUserAPI) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
}

func (f *fakeUserAPI) GetPeer(ctx context.Context, identifier string) (*models.User, error) {
	if f.peerErr != nil {
		return nil, f.peerErr
	}
	return &models.User{ID: "u-peer", Username: identifier, PublicIdentityKey: []byte("pik")}, nil
}

type fakeDeliveryAPI struct {
	ensureErr  error
	historyErr error

	lastUserID string
}

func (f *fakeDeliveryAPI) EnsureChat(ctx context.Context, userID, peerID string) (*models.Chat, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	f.lastUserID = userID
	lo, hi := models.NormalizePair(userID, peerID)
	return &models.Chat{ID: "c-1", UserLo: lo, UserHi: hi}, nil
}

func (f *fakeDeliveryAPI) ListChats(ctx context.Context, userID string) ([]*services.ChatSummary, error) {
	f.lastUserID = userID
	return []*services.ChatSummary{
		{Chat: &models.Chat{ID: "c-1"}, PeerID: "u-peer", Unread: 2},
	}, nil
}

func (f *fakeDeliveryAPI) History(ctx context.Context, userID, chatID string) ([]*models.Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return []*models.Message{{ID: "m-1", ChatID: chatID, SenderID: "u-peer", ReceiverID: userID}}, nil
}

type fakePhotoAPI struct{}

func (f *fakePhotoAPI) GetUploadURL(ctx context.Context, userID string) (string, string, error) {
	return "avatars/" + userID + "/k", "http://signed/k", nil
}

func (f *fakePhotoAPI) SetPhoto(ctx context.Context, userID, key string) error { return nil }

func newTestServer(t *testing.T, users *fakeUserAPI, delivery *fakeDeliveryAPI) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "http-test-secret"
	srv := NewServer(users, delivery, &fakePhotoAPI{}, nil, cfg, logging.NewSlogLogger(slog.Default()))
	return httptest.NewServer(srv.Handler())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	return resp
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, userID+"@example.com", auth.KindAccess, []byte("http-test-secret"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return token
}

func TestRegisterStart_OK(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/register/start",
		&registerStartRequest{Username: "alice", Email: "a@x.com", Blinded: []byte("a")})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	out := &opaque.RegistrationResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(out.ServerPublicKey) == 0 {
		t.Fatalf("missing server public key")
	}
}

func TestRegisterStart_Duplicate(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{registerStartErr: common.ErrDuplicateIdentity}, &fakeDeliveryAPI{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/register/start", &registerStartRequest{Username: "alice"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
}

func TestLoginFinish_SetsRefreshCookie(t *testing.T) {
	users := &fakeUserAPI{loginResult: &services.LoginResult{
		User:   &models.User{ID: "u-1", Username: "alice", WrappedIdentityKey: []byte("wik")},
		Tokens: &services.TokenPair{AccessToken: "acc", RefreshToken: "ref"},
	}}
	srv := newTestServer(t, users, &fakeDeliveryAPI{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/login/finish", &loginFinishRequest{Identifier: "alice"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var refreshCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			refreshCookie = c
		}
	}
	if refreshCookie == nil || refreshCookie.Value != "ref" || !refreshCookie.HttpOnly {
		t.Fatalf("refresh cookie not set properly: %+v", refreshCookie)
	}

	out := &loginFinishResponse{}
	json.NewDecoder(resp.Body).Decode(out)
	if out.AccessToken != "acc" || string(out.Keys.WrappedIdentityKey) != "wik" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestLoginFinish_GenericUnauthorized(t *testing.T) {
	// Bad proof, missing state and expired state must be indistinguishable
	// to the caller: same status, same body.
	failures := []struct {
		name string
		err  error
	}{
		{"invalid credentials", common.ErrInvalidCredentials},
		{"state missing", common.ErrLoginStateMissing},
		{"state expired", common.ErrLoginStateExpired},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeUserAPI{loginFinishErr: tc.err}, &fakeDeliveryAPI{})
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/api/login/finish", &loginFinishRequest{Identifier: "alice"})
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", resp.StatusCode)
			}
			out := &errorResponse{}
			json.NewDecoder(resp.Body).Decode(out)
			if out.Error != "unauthorized" {
				t.Fatalf("body must stay generic, got %q", out.Error)
			}
		})
	}
}

func TestRefresh_NoCookie(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/refresh", struct{}{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestRefresh_RotatesCookie(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "old-refresh"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName && c.Value == "new-refresh" {
			return
		}
	}
	t.Fatalf("refresh cookie not rotated")
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chats")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestListChats_Authed(t *testing.T) {
	delivery := &fakeDeliveryAPI{}
	srv := newTestServer(t, &fakeUserAPI{}, delivery)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "u-42"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	if delivery.lastUserID != "u-42" {
		t.Fatalf("handler saw user %q, want u-42", delivery.lastUserID)
	}

	var out []*chatResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out) != 1 || out[0].Unread != 2 {
		t.Fatalf("unexpected chats: %+v", out)
	}
}

func TestHistory_Forbidden(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{historyErr: common.ErrNotAParticipant})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/chats/c-1/messages", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "u-42"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", resp.StatusCode)
	}
}

func TestGetPeer_NotFound(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{peerErr: common.ErrUserNotFound}, &fakeDeliveryAPI{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/peers/ghost", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "u-42"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestAvatarUpload(t *testing.T) {
	srv := newTestServer(t, &fakeUserAPI{}, &fakeDeliveryAPI{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/profile/avatar-upload", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "u-42"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	out := &avatarUploadResponse{}
	json.NewDecoder(resp.Body).Decode(out)
	if out.Key == "" || out.URL == "" {
		t.Fatalf("missing key or url: %+v", out)
	}
}
