package middleware

import (
	"errors"
	"net/http"
	"strings"

	"sessionkeeper/backend/internal/security"
	"sessionkeeper/backend/internal/server/response"
)

const bearerPrefix = "bearer "

// ExtractBearer returns the token from an Authorization header value. A "Bearer " prefix is
// optional; a bare token is returned as is. Returns "" for an empty header.
func ExtractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) >= len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(v[len(bearerPrefix):])
	}
	if strings.ContainsRune(v, ' ') || strings.EqualFold(v, strings.TrimSpace(bearerPrefix)) {
		return ""
	}
	return v
}

// Authenticate verifies the access token from the Authorization header and stores its subject
// and role in the request context. Missing, invalid and expired tokens get 401.
func Authenticate(codec *security.TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r.Header.Get("Authorization"))
			if token == "" {
				response.Error(w, http.StatusUnauthorized, response.CodeTokenRequired, "access token required")
				return
			}
			p, err := codec.VerifyAccessToken(token)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) {
					response.Error(w, http.StatusUnauthorized, response.CodeTokenExpired, "access token expired")
					return
				}
				response.Error(w, http.StatusUnauthorized, response.CodeTokenInvalid, "access token invalid")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), p.Subject, p.Role)))
		})
	}
}

// RequireRole rejects requests whose authenticated role is not role with 403.
// Must run after Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got, _ := GetRole(r.Context()); got != role {
				response.Error(w, http.StatusForbidden, response.CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
