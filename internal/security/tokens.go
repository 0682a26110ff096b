package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, badly signed, or of the wrong kind.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a correctly signed token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrWeakSecret is returned when a signing secret is empty or shared between token kinds.
	ErrWeakSecret = errors.New("access and refresh secrets must be set and distinct")
)

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// AccessPayload is the decoded content of an access token.
type AccessPayload struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshPayload is the decoded content of a refresh token. SessionID and Version
// bind the token to one persisted session row.
type RefreshPayload struct {
	Subject   string
	SessionID string
	Version   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims holds JWT claims for the access token.
type accessClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
}

// refreshClaims holds JWT claims for the refresh token.
type refreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Version   int64  `json:"version"`
	TokenUse  string `json:"token_use"`
}

// TokenCodec signs and verifies access and refresh JWTs with HS256, each kind under its own secret.
// It performs no I/O.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec returns a TokenCodec. Both secrets must be non-empty and different so a
// leaked access secret cannot forge refresh tokens.
func NewTokenCodec(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 || string(accessSecret) == string(refreshSecret) {
		return nil, ErrWeakSecret
	}
	return &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of c that reads the current time from now. Used for expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessPayloadFor builds an access payload issued at now and expiring after the access TTL.
func (c *TokenCodec) AccessPayloadFor(subject, role string, now time.Time) AccessPayload {
	return AccessPayload{Subject: subject, Role: role, IssuedAt: now, ExpiresAt: now.Add(c.accessTTL)}
}

// RefreshPayloadFor builds a refresh payload issued at now and expiring after the refresh TTL.
func (c *TokenCodec) RefreshPayloadFor(subject, sessionID string, version int64, now time.Time) RefreshPayload {
	return RefreshPayload{Subject: subject, SessionID: sessionID, Version: version, IssuedAt: now, ExpiresAt: now.Add(c.refreshTTL)}
}

// MintAccessToken signs p as an access token.
func (c *TokenCodec) MintAccessToken(p AccessPayload) (string, error) {
	if p.Subject == "" || p.Role == "" {
		return "", ErrTokenInvalid
	}
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		Role:     p.Role,
		TokenUse: useAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// MintRefreshToken signs p as a refresh token.
func (c *TokenCodec) MintRefreshToken(p RefreshPayload) (string, error) {
	if p.Subject == "" || p.SessionID == "" || p.Version < 1 {
		return "", ErrTokenInvalid
	}
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		SessionID: p.SessionID,
		Version:   p.Version,
		TokenUse:  useRefresh,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
}

// VerifyAccessToken checks signature, expiry, issuer and kind. Returns ErrTokenExpired for an
// elapsed but otherwise valid token and ErrTokenInvalid for everything else.
func (c *TokenCodec) VerifyAccessToken(token string) (*AccessPayload, error) {
	var claims accessClaims
	if err := c.parse(token, &claims, c.accessSecret); err != nil {
		return nil, err
	}
	if claims.TokenUse != useAccess || claims.Subject == "" || claims.Role == "" {
		return nil, ErrTokenInvalid
	}
	return &AccessPayload{
		Subject:   claims.Subject,
		Role:      claims.Role,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

// VerifyRefreshToken checks signature, expiry, issuer and kind, with the same failure split as VerifyAccessToken.
func (c *TokenCodec) VerifyRefreshToken(token string) (*RefreshPayload, error) {
	var claims refreshClaims
	if err := c.parse(token, &claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenUse != useRefresh {
		return nil, ErrTokenInvalid
	}
	return refreshPayload(&claims)
}

// DecodeRefreshUnverified extracts the refresh payload without checking signature or expiry.
// Only for tokens this process minted itself, or to locate the session row to revoke.
func (c *TokenCodec) DecodeRefreshUnverified(token string) (*RefreshPayload, error) {
	var claims refreshClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return refreshPayload(&claims)
}

func (c *TokenCodec) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func refreshPayload(claims *refreshClaims) (*RefreshPayload, error) {
	if claims.Subject == "" || claims.SessionID == "" || claims.Version < 1 {
		return nil, ErrTokenInvalid
	}
	return &RefreshPayload{
		Subject:   claims.Subject,
		SessionID: claims.SessionID,
		Version:   claims.Version,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

// NewSessionID returns a 256-bit random session identifier, hex-encoded.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
