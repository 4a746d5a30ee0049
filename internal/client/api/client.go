// Package api is the HTTP client for the server's JSON endpoints. It keeps
// the access token and the refresh cookie and retries nothing; callers
// decide what a failed request means.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/opaque"
)

const refreshCookieName = "refresh_token"

// Client talks to one Hushwire server.
type Client struct {
	baseURL string
	http    *http.Client

	mu            sync.Mutex
	accessToken   string
	refreshCookie *http.Cookie
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// AccessToken returns the current bearer token, empty before login.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// SetSession installs credentials obtained from a login response.
func (c *Client) setSession(accessToken string, refreshCookie *http.Cookie) {
	c.mu.Lock()
	c.accessToken = accessToken
	if refreshCookie != nil {
		c.refreshCookie = refreshCookie
	}
	c.mu.Unlock()
}

// ClearSession drops local credentials. The server keeps no session state
// beyond the cookie, so this is the whole logout.
func (c *Client) ClearSession() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshCookie = nil
	c.mu.Unlock()
}

// WebSocketURL derives the realtime endpoint from the base URL.
func (c *Client) WebSocketURL() string {
	url := c.baseURL + "/ws"
	if strings.HasPrefix(url, "https") {
		return "wss" + strings.TrimPrefix(url, "https")
	}
	return "ws" + strings.TrimPrefix(url, "http")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	if authed && c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.refreshCookie != nil {
		req.AddCookie(c.refreshCookie)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName {
			c.mu.Lock()
			c.refreshCookie = cookie
			c.mu.Unlock()
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrorUnauthorized
	}
	if resp.StatusCode >= 400 {
		e := &errorResponse{}
		if err := json.NewDecoder(resp.Body).Decode(e); err == nil && e.Error != "" {
			return fmt.Errorf("server: %s", e.Error)
		}
		return fmt.Errorf("server: unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// --- account handshakes ---

func (c *Client) RegisterStart(ctx context.Context, username, email string, req *opaque.RegistrationRequest) (*opaque.RegistrationResponse, error) {
	out := &opaque.RegistrationResponse{}
	err := c.do(ctx, http.MethodPost, "/api/register/start", &registerStartRequest{
		Username: username, Email: email, Blinded: req.Blinded,
	}, out, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RegisterFinish(ctx context.Context, p *RegisterFinishParams) (string, error) {
	out := &registerFinishResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/register/finish", p, out, false); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *Client) LoginStart(ctx context.Context, identifier string, req *opaque.LoginRequest) (*opaque.LoginResponse, error) {
	out := &opaque.LoginResponse{}
	err := c.do(ctx, http.MethodPost, "/api/login/start", &loginStartRequest{
		Identifier: identifier, Blinded: req.Blinded, ClientEphemeral: req.ClientEphemeral,
	}, out, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LoginFinish(ctx context.Context, identifier string, fin *opaque.LoginFinish) (*LoginResult, error) {
	out := &LoginResult{}
	err := c.do(ctx, http.MethodPost, "/api/login/finish", &loginFinishRequest{
		Identifier: identifier, Signature: fin.Signature, MAC: fin.MAC,
	}, out, false)
	if err != nil {
		return nil, err
	}
	c.setSession(out.AccessToken, nil)
	return out, nil
}

// Refresh trades the refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	out := &refreshResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/refresh", nil, out, false); err != nil {
		return err
	}
	c.setSession(out.AccessToken, nil)
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil, true)
	c.ClearSession()
	return err
}

// --- chats ---

func (c *Client) GetPeer(ctx context.Context, identifier string) (*Peer, error) {
	out := &Peer{}
	if err := c.do(ctx, http.MethodGet, "/api/peers/"+identifier, nil, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EnsureChat(ctx context.Context, peerIdentifier string) (*Chat, error) {
	out := &Chat{}
	err := c.do(ctx, http.MethodPost, "/api/chats", &ensureChatRequest{Peer: peerIdentifier}, out, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListChats(ctx context.Context) ([]*Chat, error) {
	var out []*Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, chatID string) ([]*Message, error) {
	var out []*Message
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID+"/messages", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// --- profile ---

func (c *Client) GetAvatarUploadURL(ctx context.Context) (key, url string, err error) {
	out := &avatarUploadResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/profile/avatar-upload", nil, out, true); err != nil {
		return "", "", err
	}
	return out.Key, out.URL, nil
}

func (c *Client) SetPhoto(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPut, "/api/profile/photo", &setPhotoRequest{Key: key}, nil, true)
}
