package domain

import "time"

// Session lifecycle audit actions.
const (
	ActionLogin          = "session.login"
	ActionLoginFailed    = "session.login_failed"
	ActionRotated        = "session.rotated"
	ActionRejected       = "session.rejected"
	ActionRevoked        = "session.revoked"
	ActionRevokedAll     = "session.revoked_all"
	ActionReplayDetected = "session.replay_detected"
	ActionPurged         = "session.purged"
	ActionUserRegistered = "user.registered"
)

// AuditLog represents an audit event. Resource is usually a session id; Metadata carries the
// detailed internal reason that is never sent to clients.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
