// Package handler serves session listing and revocation for the authenticated user.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/server/middleware"
	"sessionkeeper/backend/internal/server/response"
	"sessionkeeper/backend/internal/session/domain"
)

// SessionService is the part of the session manager the handler uses.
type SessionService interface {
	ListSessions(ctx context.Context, userID string, revoked bool) ([]*domain.Session, error)
	RevokeByID(ctx context.Context, userID, sessionID, reason string) (bool, error)
}

// Handler serves /auth/sessions. Routes must sit behind middleware.Authenticate.
type Handler struct {
	svc SessionService
	log zerolog.Logger
}

// NewHandler returns a session Handler.
func NewHandler(svc SessionService, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/auth/sessions", h.list)
	r.Delete("/auth/sessions/{sessionID}", h.revoke)
}

type sessionResponse struct {
	SessionID      string `json:"session_id"`
	Version        int64  `json:"version"`
	Revoked        bool   `json:"is_revoked"`
	Reason         string `json:"reason,omitempty"`
	DeviceName     string `json:"device_name"`
	BrowserVersion string `json:"browser_version"`
	IPAddress      string `json:"ip_address"`
	CreatedAt      string `json:"created_at"`
	ExpiresAt      string `json:"expires_at"`
	UpdatedAt      string `json:"updated_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, response.CodeTokenRequired, "access token required")
		return
	}
	var revoked bool
	switch r.URL.Query().Get("state") {
	case "", "active":
	case "revoked":
		revoked = true
	default:
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "state must be active or revoked")
		return
	}
	sessions, err := h.svc.ListSessions(r.Context(), userID, revoked)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("sessions: list failed")
		response.Error(w, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}
	out := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = toResponse(s)
	}
	response.OK(w, http.StatusOK, out)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, response.CodeTokenRequired, "access token required")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	changed, err := h.svc.RevokeByID(r.Context(), userID, sessionID, domain.ReasonLogout)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("sessions: revoke failed")
		response.Error(w, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}
	response.OK(w, http.StatusOK, map[string]bool{"revoked": changed})
}

func toResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		SessionID:      s.ID,
		Version:        s.Version,
		Revoked:        s.Revoked,
		Reason:         s.Reason,
		DeviceName:     s.DeviceName,
		BrowserVersion: s.BrowserVersion,
		IPAddress:      s.IPAddress,
		CreatedAt:      epoch(s.CreatedAt),
		ExpiresAt:      epoch(s.ExpiresAt),
		UpdatedAt:      epoch(s.UpdatedAt),
	}
}

func epoch(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
