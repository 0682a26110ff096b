package domain

import "errors"

// Externally visible session failures. Every rejection maps to exactly one of these.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrInternal        = errors.New("internal error")
)

// Internal rejection reasons, kept for logs and audit records only.
const (
	RejectNotFound           = "not_found"
	RejectVersionMismatch    = "version_mismatch"
	RejectRevoked            = "revoked"
	RejectHardExpiry         = "hard_expiry"
	RejectIPChange           = "ip_change"
	RejectDeviceChange       = "device_change"
	RejectBrowserChange      = "browser_change"
	RejectConcurrentRotation = "concurrent_rotation"
)

// RejectionError pairs a coarse session error with the detailed reason that produced it.
// errors.Is matches only the coarse error.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string { return e.Err.Error() }

func (e *RejectionError) Unwrap() error { return e.Err }

// Reject returns a RejectionError for err with the given reason.
func Reject(reason string, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}

// RejectionReason returns the detailed reason carried by err, or "" if none.
func RejectionReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
