package security

import (
	"errors"
	"os"
	"strings"
)

// ErrInvalidSecret is returned when a secret is empty or cannot be read.
var ErrInvalidSecret = errors.New("invalid secret")

// minSecretLen is the shortest HMAC secret accepted for HS256.
const minSecretLen = 32

const filePrefix = "file:"

// Development-only secrets used when none are configured outside production.
const (
	devAccessSecret  = "dev-access-secret-do-not-use-in-production-0001"
	devRefreshSecret = "dev-refresh-secret-do-not-use-in-production-0002"
)

// LoadSecret returns the secret bytes for s. When s starts with "file:" the rest is read as a path
// and surrounding whitespace is trimmed; otherwise s is the secret itself.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if path, ok := strings.CutPrefix(s, filePrefix); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		b = []byte(strings.TrimSpace(string(b)))
		if len(b) == 0 {
			return nil, ErrInvalidSecret
		}
		return checkLength(b)
	}
	return checkLength([]byte(s))
}

func checkLength(b []byte) ([]byte, error) {
	if len(b) < minSecretLen {
		return nil, ErrInvalidSecret
	}
	return b, nil
}

// ResolveSecrets loads the access and refresh secrets. When both are unset and production is false,
// fixed development secrets are returned so a local server starts without setup.
func ResolveSecrets(access, refresh string, production bool) (accessSecret, refreshSecret []byte, err error) {
	if strings.TrimSpace(access) == "" && strings.TrimSpace(refresh) == "" && !production {
		return []byte(devAccessSecret), []byte(devRefreshSecret), nil
	}
	accessSecret, err = LoadSecret(access)
	if err != nil {
		return nil, nil, err
	}
	refreshSecret, err = LoadSecret(refresh)
	if err != nil {
		return nil, nil, err
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, nil, ErrWeakSecret
	}
	return accessSecret, refreshSecret, nil
}
