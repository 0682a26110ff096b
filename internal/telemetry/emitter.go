package telemetry

import (
	"context"
	"time"
)

// Security event types emitted by the session lifecycle.
const (
	EventLogin          = "session.login"
	EventRotated        = "session.rotated"
	EventRejected       = "session.rejected"
	EventRevoked        = "session.revoked"
	EventReplayDetected = "session.replay_detected"
)

// Event is one session security event. Reason carries the internal rejection or revocation cause.
type Event struct {
	Type      string
	UserID    string
	SessionID string
	Reason    string
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
