// Package handler serves the auth endpoints over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/fingerprint"
	"sessionkeeper/backend/internal/identity/service"
	"sessionkeeper/backend/internal/security"
	"sessionkeeper/backend/internal/server/middleware"
	"sessionkeeper/backend/internal/server/response"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
	userdomain "sessionkeeper/backend/internal/user/domain"
	userrepo "sessionkeeper/backend/internal/user/repository"
)

// AuthService is the orchestrator the handler calls.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*userdomain.User, error)
	Login(ctx context.Context, username, password string, fp fingerprint.Fingerprint) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) error
	RevokeAll(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint, reason string) (int64, error)
}

// Handler serves /auth/register, /auth/login, /auth/refresh, /auth/logout and /auth/logout-all.
type Handler struct {
	svc AuthService
	log zerolog.Logger
}

// NewHandler returns an auth Handler.
func NewHandler(svc AuthService, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the public auth endpoints on r. loginLimit, when non-nil, wraps the login route.
func (h *Handler) Routes(r chi.Router, loginLimit func(http.Handler) http.Handler) {
	r.Post("/auth/register", h.register)
	if loginLimit != nil {
		r.With(loginLimit).Post("/auth/login", h.login)
	} else {
		r.Post("/auth/login", h.login)
	}
	r.Post("/auth/refresh", h.refresh)
	r.Post("/auth/logout", h.logout)
	r.Post("/auth/logout-all", h.logoutAll)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type tokensResponse struct {
	User            *userResponse `json:"user,omitempty"`
	AccessToken     string        `json:"access_token"`
	RefreshToken    string        `json:"refresh_token"`
	AccessExpiresAt string        `json:"access_expires_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "malformed request body")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, userResponse{ID: u.ID, Username: u.Username, Role: u.Role})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "malformed request body")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Username, req.Password, requestFingerprint(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := tokens(res)
	out.User = &userResponse{ID: res.UserID, Username: res.Username, Role: res.Role}
	response.OK(w, http.StatusOK, out)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Refresh(r.Context(), token, requestFingerprint(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, tokens(res))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), token, requestFingerprint(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	n, err := h.svc.RevokeAll(r.Context(), token, requestFingerprint(r), sessiondomain.ReasonLogoutAll)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]int64{"revoked": n})
}

// refreshToken reads the refresh token from the Authorization header, falling back to the
// JSON body's refresh_token. Writes the error response and reports false when absent.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if token := middleware.ExtractBearer(r.Header.Get("Authorization")); token != "" {
		return token, true
	}
	var req tokenRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "malformed request body")
		return "", false
	}
	if req.RefreshToken == "" {
		h.fail(w, r, service.ErrTokenRequired)
		return "", false
	}
	return req.RefreshToken, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("auth: request failed")
	}
	response.Error(w, status, code, msg)
}

// StatusFor maps auth and session errors to an HTTP status, error code and client message.
// Session rejections share one message per category so the internal reason does not leak.
func StatusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrWeakPassword), errors.Is(err, userdomain.ErrInvalidUsername):
		return http.StatusBadRequest, response.CodeValidation, err.Error()
	case errors.Is(err, userrepo.ErrUsernameTaken):
		return http.StatusConflict, response.CodeUsernameTaken, "username already taken"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid username or password"
	case errors.Is(err, service.ErrTokenRequired):
		return http.StatusUnauthorized, response.CodeTokenRequired, "refresh token required"
	case errors.Is(err, security.ErrTokenExpired):
		return http.StatusUnauthorized, response.CodeTokenExpired, "token expired"
	case errors.Is(err, security.ErrTokenInvalid):
		return http.StatusUnauthorized, response.CodeTokenInvalid, "token invalid"
	case errors.Is(err, sessiondomain.ErrSessionNotFound):
		return http.StatusUnauthorized, response.CodeSessionNotFound, "session not found"
	case errors.Is(err, sessiondomain.ErrSessionExpired):
		return http.StatusUnauthorized, response.CodeSessionExpired, "session expired"
	case errors.Is(err, sessiondomain.ErrSessionRevoked):
		return http.StatusUnauthorized, response.CodeSessionRevoked, "session revoked"
	default:
		return http.StatusInternalServerError, response.CodeInternal, "internal error"
	}
}

func requestFingerprint(r *http.Request) fingerprint.Fingerprint {
	return fingerprint.Extract(r.UserAgent(), middleware.GetClientIP(r.Context()))
}

func tokens(res *service.AuthResult) tokensResponse {
	return tokensResponse{
		AccessToken:     res.AccessToken,
		RefreshToken:    res.RefreshToken,
		AccessExpiresAt: res.AccessExpiresAt.UTC().Format(time.RFC3339),
	}
}
