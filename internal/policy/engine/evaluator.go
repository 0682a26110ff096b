package engine

import (
	"context"

	"sessionkeeper/backend/internal/fingerprint"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
)

// DriftToggles says which fingerprint axes may change during a session's life.
type DriftToggles struct {
	AllowIPChange      bool
	AllowBrowserChange bool
	AllowDeviceChange  bool
}

// DefaultDriftToggles allows IP changes (mobile networks hop routinely) and forbids browser and device changes.
func DefaultDriftToggles() DriftToggles {
	return DriftToggles{AllowIPChange: true}
}

// DriftDecision is the outcome of comparing a stored fingerprint with the presented one.
// Reason is one of the session rejection reasons when Allowed is false.
type DriftDecision struct {
	Allowed bool
	Reason  string
}

// DriftEvaluator decides whether a fingerprint change is acceptable for an existing session.
type DriftEvaluator interface {
	EvaluateDrift(ctx context.Context, stored, current fingerprint.Fingerprint) (DriftDecision, error)
}

// StaticEvaluator applies DriftToggles directly. Checks run in the order ip, device, browser.
type StaticEvaluator struct {
	Toggles DriftToggles
}

// NewStaticEvaluator returns a StaticEvaluator for toggles.
func NewStaticEvaluator(toggles DriftToggles) *StaticEvaluator {
	return &StaticEvaluator{Toggles: toggles}
}

// EvaluateDrift never returns an error.
func (e *StaticEvaluator) EvaluateDrift(_ context.Context, stored, current fingerprint.Fingerprint) (DriftDecision, error) {
	return staticDecision(e.Toggles, stored, current), nil
}

func staticDecision(t DriftToggles, stored, current fingerprint.Fingerprint) DriftDecision {
	if !t.AllowIPChange && stored.IPAddress != current.IPAddress {
		return DriftDecision{Reason: sessiondomain.RejectIPChange}
	}
	if !t.AllowDeviceChange && stored.DeviceName != current.DeviceName {
		return DriftDecision{Reason: sessiondomain.RejectDeviceChange}
	}
	if !t.AllowBrowserChange && stored.BrowserVersion != current.BrowserVersion {
		return DriftDecision{Reason: sessiondomain.RejectBrowserChange}
	}
	return DriftDecision{Allowed: true}
}
