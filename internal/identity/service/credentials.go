package service

import (
	"context"
	"errors"
	"strings"

	"sessionkeeper/backend/internal/security"
	userdomain "sessionkeeper/backend/internal/user/domain"
)

// CredentialVerifier checks a username and password and returns the principal.
// It returns ErrInvalidCredentials for an unknown user or wrong password.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*userdomain.User, error)
}

// PasswordVerifier verifies bcrypt password hashes stored in the user repository.
type PasswordVerifier struct {
	users  UserRepo
	hasher *security.Hasher
}

// NewPasswordVerifier returns a PasswordVerifier over users.
func NewPasswordVerifier(users UserRepo, hasher *security.Hasher) *PasswordVerifier {
	return &PasswordVerifier{users: users, hasher: hasher}
}

// Verify runs a bcrypt comparison whether or not the user exists, so response time does not
// reveal which usernames are registered.
func (v *PasswordVerifier) Verify(ctx context.Context, username, password string) (*userdomain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		_ = v.hasher.CompareMissing([]byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}
