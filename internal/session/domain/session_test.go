package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"sessionkeeper/backend/internal/fingerprint"
)

func TestSession_Expiry(t *testing.T) {
	now := time.Unix(1_000, 0)
	s := &Session{ExpiresAt: 1_000}
	if s.IsExpired(now) {
		t.Error("session at its ceiling second should not be expired")
	}
	if !s.IsExpired(now.Add(time.Second)) {
		t.Error("session past its ceiling should be expired")
	}
	if !s.IsActive(now) {
		t.Error("unrevoked, unexpired session should be active")
	}
	s.Revoked = true
	if s.IsActive(now) {
		t.Error("revoked session should not be active")
	}
}

func TestPatch(t *testing.T) {
	if !(Patch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	if (Patch{IfVersion: 3}).Empty() != true {
		t.Error("guard alone changes nothing")
	}
	rp := RevokePatch(ReasonLogout)
	if rp.Empty() || !rp.Revoke || *rp.Reason != ReasonLogout {
		t.Errorf("RevokePatch = %+v", rp)
	}
	fp := fingerprint.Fingerprint{DeviceName: "d", BrowserVersion: "b", IPAddress: "i"}
	p := RotatePatch(5, fp, time.Unix(1_234, 0))
	if *p.Version != 5 || p.IfVersion != 4 || p.IfActiveAt != 1_234 {
		t.Errorf("RotatePatch version=%d if=%d active=%d", *p.Version, p.IfVersion, p.IfActiveAt)
	}
	if *p.DeviceName != "d" || *p.BrowserVersion != "b" || *p.IPAddress != "i" {
		t.Errorf("RotatePatch fingerprint fields = %+v", p)
	}
}

func TestRejectionError(t *testing.T) {
	err := fmt.Errorf("validate: %w", Reject(RejectVersionMismatch, ErrSessionRevoked))
	if !errors.Is(err, ErrSessionRevoked) {
		t.Error("errors.Is should match the coarse error")
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Error("errors.Is should not match other coarse errors")
	}
	if got := RejectionReason(err); got != RejectVersionMismatch {
		t.Errorf("RejectionReason = %q", got)
	}
	if RejectionReason(ErrSessionRevoked) != "" {
		t.Error("plain error has no reason")
	}
	if err.Error() != "validate: session revoked" {
		t.Errorf("Error() = %q leaks detail", err.Error())
	}
}
