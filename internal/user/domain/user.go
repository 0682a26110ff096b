package domain

import (
	"errors"
	"regexp"
	"time"
)

// Roles carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	// ErrInvalidUsername is returned when a username is not 4–20 letters, digits, or underscores.
	ErrInvalidUsername = errors.New("username must be 4-20 letters, digits, or underscores")
	// ErrInvalidRole is returned for a role other than user or admin.
	ErrInvalidRole = errors.New("role must be user or admin")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,20}$`)

// User is the principal that owns sessions.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if !usernamePattern.MatchString(u.Username) {
		return ErrInvalidUsername
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Role != RoleUser && u.Role != RoleAdmin {
		return ErrInvalidRole
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
