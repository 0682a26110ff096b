// Package handler serves admin-only session and audit operations on any user.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	auditdomain "sessionkeeper/backend/internal/audit/domain"
	"sessionkeeper/backend/internal/server/middleware"
	"sessionkeeper/backend/internal/server/response"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
	userdomain "sessionkeeper/backend/internal/user/domain"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// SessionAdmin is the part of the session manager admins use.
type SessionAdmin interface {
	ListSessions(ctx context.Context, userID string, revoked bool) ([]*sessiondomain.Session, error)
	RevokeByID(ctx context.Context, userID, sessionID, reason string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
}

// AuditLister reads a user's audit trail, newest first.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.AuditLog, error)
}

// Handler serves /admin. Routes must sit behind middleware.Authenticate; Routes adds the role check.
type Handler struct {
	sessions SessionAdmin
	audit    AuditLister
	log      zerolog.Logger
}

// NewHandler returns an admin Handler. audit may be nil; the audit route is then not mounted.
func NewHandler(sessions SessionAdmin, audit AuditLister, log zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, audit: audit, log: log}
}

// Routes mounts the admin endpoints on r, restricted to the admin role.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin/users/{userID}", func(r chi.Router) {
		r.Use(middleware.RequireRole(userdomain.RoleAdmin))
		r.Get("/sessions", h.listSessions)
		r.Post("/sessions/revoke", h.revokeAll)
		r.Delete("/sessions/{sessionID}", h.revoke)
		if h.audit != nil {
			r.Get("/audit", h.listAudit)
		}
	})
}

type sessionResponse struct {
	SessionID      string `json:"session_id"`
	Version        int64  `json:"version"`
	Revoked        bool   `json:"is_revoked"`
	Reason         string `json:"reason,omitempty"`
	DeviceName     string `json:"device_name"`
	BrowserVersion string `json:"browser_version"`
	IPAddress      string `json:"ip_address"`
	ExpiresAt      int64  `json:"expires_at"`
}

type auditResponse struct {
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	IP        string `json:"ip"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	revoked := r.URL.Query().Get("state") == "revoked"
	sessions, err := h.sessions.ListSessions(r.Context(), userID, revoked)
	if err != nil {
		h.internal(w, err, userID)
		return
	}
	out := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = sessionResponse{
			SessionID:      s.ID,
			Version:        s.Version,
			Revoked:        s.Revoked,
			Reason:         s.Reason,
			DeviceName:     s.DeviceName,
			BrowserVersion: s.BrowserVersion,
			IPAddress:      s.IPAddress,
			ExpiresAt:      s.ExpiresAt,
		}
	}
	response.OK(w, http.StatusOK, out)
}

func (h *Handler) revokeAll(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	n, err := h.sessions.RevokeAllForUser(r.Context(), userID, sessiondomain.ReasonAdmin)
	if err != nil {
		h.internal(w, err, userID)
		return
	}
	response.OK(w, http.StatusOK, map[string]int64{"revoked": n})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	changed, err := h.sessions.RevokeByID(r.Context(), userID, chi.URLParam(r, "sessionID"), sessiondomain.ReasonAdmin)
	if err != nil {
		h.internal(w, err, userID)
		return
	}
	response.OK(w, http.StatusOK, map[string]bool{"revoked": changed})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAuditLimit {
			response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	logs, err := h.audit.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.internal(w, err, userID)
		return
	}
	out := make([]auditResponse, len(logs))
	for i, l := range logs {
		out[i] = auditResponse{
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	response.OK(w, http.StatusOK, out)
}

func (h *Handler) internal(w http.ResponseWriter, err error, userID string) {
	h.log.Error().Err(err).Str("target_user_id", userID).Msg("admin: request failed")
	response.Error(w, http.StatusInternalServerError, response.CodeInternal, "internal error")
}
