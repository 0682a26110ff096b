// Package handler serves the authenticated user's profile.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/server/middleware"
	"sessionkeeper/backend/internal/server/response"
	"sessionkeeper/backend/internal/user/domain"
)

// UserGetter loads a user by ID. Returns (nil, nil) when not found.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler serves /users/me. Routes must sit behind middleware.Authenticate.
type Handler struct {
	users UserGetter
	log   zerolog.Logger
}

// NewHandler returns a user Handler.
func NewHandler(users UserGetter, log zerolog.Logger) *Handler {
	return &Handler{users: users, log: log}
}

// Routes mounts the user endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/users/me", h.me)
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, response.CodeTokenRequired, "access token required")
		return
	}
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("users: lookup failed")
		response.Error(w, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}
	if u == nil {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "user not found")
		return
	}
	response.OK(w, http.StatusOK, userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	})
}
