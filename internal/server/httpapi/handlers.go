package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/opaque"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/services"
)

const refreshCookieName = "refresh_token"

func (s *Server) handleRegisterStart(w http.ResponseWriter, r *http.Request) {
	req := &registerStartRequest{}
	if !s.decode(w, r, req) {
		return
	}

	resp, err := s.users.RegisterStart(r.Context(), req.Username, req.Email,
		&opaque.RegistrationRequest{Blinded: req.Blinded})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterFinish(w http.ResponseWriter, r *http.Request) {
	req := &registerFinishRequest{}
	if !s.decode(w, r, req) {
		return
	}

	user, err := s.users.RegisterFinish(r.Context(), &services.RegisterFinishParams{
		Username:           req.Username,
		Email:              req.Email,
		Record:             req.Record,
		PublicIdentityKey:  req.PublicIdentityKey,
		PublicSigningKey:   req.PublicSigningKey,
		WrappedIdentityKey: req.WrappedIdentityKey,
		IdentityNonce:      req.IdentityNonce,
		IdentitySalt:       req.IdentitySalt,
		WrappedSigningKey:  req.WrappedSigningKey,
		SigningNonce:       req.SigningNonce,
		SigningSalt:        req.SigningSalt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &registerFinishResponse{UserID: user.ID})
}

func (s *Server) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	req := &loginStartRequest{}
	if !s.decode(w, r, req) {
		return
	}

	resp, err := s.users.LoginStart(r.Context(), req.Identifier, req.opaqueRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoginFinish(w http.ResponseWriter, r *http.Request) {
	req := &loginFinishRequest{}
	if !s.decode(w, r, req) {
		return
	}

	result, err := s.users.LoginFinish(r.Context(), req.Identifier, req.opaqueFinish())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, result.Tokens.RefreshToken)
	s.writeJSON(w, http.StatusOK, &loginFinishResponse{
		UserID:      result.User.ID,
		Username:    result.User.Username,
		AccessToken: result.Tokens.AccessToken,
		Keys: keyBundle{
			PublicIdentityKey:  result.User.PublicIdentityKey,
			PublicSigningKey:   result.User.PublicSigningKey,
			WrappedIdentityKey: result.User.WrappedIdentityKey,
			IdentityNonce:      result.User.IdentityNonce,
			IdentitySalt:       result.User.IdentitySalt,
			WrappedSigningKey:  result.User.WrappedSigningKey,
			SigningNonce:       result.User.SigningNonce,
			SigningSalt:        result.User.SigningSalt,
		},
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeUnauthorized(w)
		return
	}

	tokens, err := s.users.RefreshToken(r.Context(), cookie.Value)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	// Rotate: the old cookie is replaced, never reissued.
	s.setRefreshCookie(w, tokens.RefreshToken)
	s.writeJSON(w, http.StatusOK, &refreshResponse{AccessToken: tokens.AccessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPeer(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")

	peer, err := s.users.GetPeer(r.Context(), identifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, peerToResponse(peer))
}

func (s *Server) handleEnsureChat(w http.ResponseWriter, r *http.Request) {
	req := &ensureChatRequest{}
	if !s.decode(w, r, req) {
		return
	}
	userID := userIDFrom(r.Context())

	peer, err := s.users.GetPeer(r.Context(), req.Peer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chat, err := s.delivery.EnsureChat(r.Context(), userID, peer.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &chatResponse{ChatID: chat.ID, Peer: peerToResponse(peer)})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	summaries, err := s.delivery.ListChats(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]*chatResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, &chatResponse{
			ChatID: sum.Chat.ID,
			PeerID: sum.PeerID,
			Unread: sum.Unread,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	chatID := r.PathValue("id")

	msgs, err := s.delivery.History(r.Context(), userID, chatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]*messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	key, url, err := s.photos.GetUploadURL(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &avatarUploadResponse{Key: key, URL: url})
}

func (s *Server) handleSetPhoto(w http.ResponseWriter, r *http.Request) {
	req := &setPhotoRequest{}
	if !s.decode(w, r, req) {
		return
	}
	if req.Key == "" {
		s.writeError(w, r, common.ErrorValidation)
		return
	}
	userID := userIDFrom(r.Context())

	if err := s.photos.SetPhoto(r.Context(), userID, req.Key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(&errorResponse{Error: "unauthorized"})
}

// writeError maps domain sentinels to HTTP statuses. Credential failures
// share one body so callers cannot distinguish why a login failed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrLoginStateMissing),
		errors.Is(err, common.ErrLoginStateExpired),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrSessionInvalid),
		errors.Is(err, common.ErrSessionExpired):
		writeUnauthorized(w)
	case errors.Is(err, common.ErrorValidation):
		s.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid request"})
	case errors.Is(err, common.ErrDuplicateIdentity):
		s.writeJSON(w, http.StatusConflict, &errorResponse{Error: "username or email already taken"})
	case errors.Is(err, common.ErrLoginInProgress):
		s.writeJSON(w, http.StatusConflict, &errorResponse{Error: "login already in progress"})
	case errors.Is(err, common.ErrNotAParticipant):
		s.writeJSON(w, http.StatusForbidden, &errorResponse{Error: "not a participant"})
	case errors.Is(err, common.ErrUserNotFound), errors.Is(err, common.ErrorNotFound):
		s.writeJSON(w, http.StatusNotFound, &errorResponse{Error: "not found"})
	default:
		s.logger.Error(r.Context(), "internal error", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, &errorResponse{Error: common.ErrorInternal.Error()})
	}
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api",
		Expires:  time.Now().Add(s.refreshTokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func peerToResponse(u *models.User) *peerResponse {
	return &peerResponse{
		UserID:            u.ID,
		Username:          u.Username,
		PublicIdentityKey: u.PublicIdentityKey,
		PublicSigningKey:  u.PublicSigningKey,
		PhotoURL:          u.PhotoURL,
	}
}

func messageToResponse(m *models.Message) *messageResponse {
	return &messageResponse{
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
