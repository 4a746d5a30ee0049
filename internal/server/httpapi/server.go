// Package httpapi is the HTTP-shaped boundary of the server: account
// handshakes, chat queries and profile endpoints, plus the WebSocket
// upgrade route. Handlers translate between JSON DTOs and the services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/opaque"
	"github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/services"
)

// UserAPI is the slice of the user service the HTTP layer calls.
type UserAPI interface {
	RegisterStart(ctx context.Context, username, email string, req *opaque.RegistrationRequest) (*opaque.RegistrationResponse, error)
	RegisterFinish(ctx context.Context, p *services.RegisterFinishParams) (*models.User, error)
	LoginStart(ctx context.Context, identifier string, req *opaque.LoginRequest) (*opaque.LoginResponse, error)
	LoginFinish(ctx context.Context, identifier string, fin *opaque.LoginFinish) (*services.LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetPeer(ctx context.Context, identifier string) (*models.User, error)
}

// DeliveryAPI is the slice of the delivery service the HTTP layer calls.
type DeliveryAPI interface {
	EnsureChat(ctx context.Context, userID, peerID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*services.ChatSummary, error)
	History(ctx context.Context, userID, chatID string) ([]*models.Message, error)
}

// PhotoAPI is the slice of the photo service the HTTP layer calls.
type PhotoAPI interface {
	GetUploadURL(ctx context.Context, userID string) (string, string, error)
	SetPhoto(ctx context.Context, userID, key string) error
}

type Server struct {
	users    UserAPI
	delivery DeliveryAPI
	photos   PhotoAPI
	realtime http.Handler

	jwtSecret       []byte
	refreshTokenTTL time.Duration
	logger          logging.Logger
}

func NewServer(users UserAPI, delivery DeliveryAPI, photos PhotoAPI, realtime http.Handler, cfg *config.Config, logger logging.Logger) *Server {
	return &Server{
		users:           users,
		delivery:        delivery,
		photos:          photos,
		realtime:        realtime,
		jwtSecret:       []byte(cfg.SecretKey),
		refreshTokenTTL: cfg.RefreshTokenValidityDuration,
		logger:          logger,
	}
}

// Handler builds the route table. Auth-free routes are exactly the four
// handshake messages, refresh, and logout; everything else requires a
// bearer token, and /ws authenticates over its first frame.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register/start", s.handleRegisterStart)
	mux.HandleFunc("POST /api/register/finish", s.handleRegisterFinish)
	mux.HandleFunc("POST /api/login/start", s.handleLoginStart)
	mux.HandleFunc("POST /api/login/finish", s.handleLoginFinish)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	mux.HandleFunc("GET /api/peers/{identifier}", s.withAuth(s.handleGetPeer))
	mux.HandleFunc("POST /api/chats", s.withAuth(s.handleEnsureChat))
	mux.HandleFunc("GET /api/chats", s.withAuth(s.handleListChats))
	mux.HandleFunc("GET /api/chats/{id}/messages", s.withAuth(s.handleHistory))
	mux.HandleFunc("GET /api/profile/avatar-upload", s.withAuth(s.handleAvatarUpload))
	mux.HandleFunc("PUT /api/profile/photo", s.withAuth(s.handleSetPhoto))

	if s.realtime != nil {
		mux.Handle("GET /ws", s.realtime)
	}

	return s.withLogging(mux)
}
