package domain

import (
	"time"

	"sessionkeeper/backend/internal/fingerprint"
)

// Revocation reasons recorded on the session row. Diagnostic only.
const (
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonInactivity     = "inactivity"
	ReasonReplayDetected = "replay_detected"
	ReasonMaxSessions    = "max_sessions"
	ReasonAdmin          = "admin"
)

// Session is one refresh lineage for a user on one device/browser combination.
// Times are epoch seconds, matching the stored columns.
type Session struct {
	ID             string
	UserID         string
	Version        int64
	Revoked        bool
	Reason         string
	DeviceName     string
	BrowserVersion string
	IPAddress      string
	CreatedAt      int64
	ExpiresAt      int64
	UpdatedAt      int64
}

// Fingerprint returns the client descriptor captured on the session.
func (s *Session) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		DeviceName:     s.DeviceName,
		BrowserVersion: s.BrowserVersion,
		IPAddress:      s.IPAddress,
	}
}

// IsExpired reports whether now is past the session's hard ceiling.
func (s *Session) IsExpired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}

// IsActive reports whether the session is neither revoked nor past its ceiling.
func (s *Session) IsActive(now time.Time) bool {
	return !s.Revoked && !s.IsExpired(now)
}

// Patch lists the fields a session update may change. Nil fields are left untouched.
// Revocation is one-way: there is no field that clears it.
type Patch struct {
	Version        *int64
	Revoke         bool
	Reason         *string
	DeviceName     *string
	BrowserVersion *string
	IPAddress      *string

	// IfVersion, when non-zero, makes the update conditional on the stored version.
	IfVersion int64
	// IfActiveAt, when non-zero, makes the update conditional on the session being unrevoked
	// with a ceiling at or after this epoch second.
	IfActiveAt int64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Version == nil && !p.Revoke && p.Reason == nil &&
		p.DeviceName == nil && p.BrowserVersion == nil && p.IPAddress == nil
}

// RevokePatch marks a session revoked with reason.
func RevokePatch(reason string) Patch {
	return Patch{Revoke: true, Reason: &reason}
}

// RotatePatch advances a session from version-1 to version and records the new fingerprint.
// The write only lands on a session still active at now.
func RotatePatch(version int64, fp fingerprint.Fingerprint, now time.Time) Patch {
	return Patch{
		Version:        &version,
		DeviceName:     &fp.DeviceName,
		BrowserVersion: &fp.BrowserVersion,
		IPAddress:      &fp.IPAddress,
		IfVersion:      version - 1,
		IfActiveAt:     now.Unix(),
	}
}
