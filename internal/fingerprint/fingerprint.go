// Package fingerprint derives a comparable device/browser/IP descriptor from request metadata.
package fingerprint

import (
	"strings"

	"github.com/mileusna/useragent"
)

const (
	// UnknownDevice is used when the user agent yields no device or OS information.
	UnknownDevice = "Unknown Device"
	// UnknownBrowser is used when the user agent yields no browser name.
	UnknownBrowser = "Unknown Browser"
)

// Fingerprint is the per-request client descriptor compared against a session's stored values.
type Fingerprint struct {
	DeviceName     string `json:"device_name"`
	BrowserVersion string `json:"browser_version"`
	IPAddress      string `json:"ip_address"`
}

// Extract parses userAgent into a device name (device model, OS and OS version) and a browser name
// with its major version. ip is kept verbatim. The result depends only on its inputs.
func Extract(userAgent, ip string) Fingerprint {
	ua := useragent.Parse(userAgent)
	return Fingerprint{
		DeviceName:     joinOr(UnknownDevice, ua.Device, ua.OS, ua.OSVersion),
		BrowserVersion: joinOr(UnknownBrowser, ua.Name, majorVersion(ua.Version)),
		IPAddress:      ip,
	}
}

// Diff lists the fields that differ between f and other, in the order ip, device, browser.
func (f Fingerprint) Diff(other Fingerprint) []string {
	var out []string
	if f.IPAddress != other.IPAddress {
		out = append(out, "ip_address")
	}
	if f.DeviceName != other.DeviceName {
		out = append(out, "device_name")
	}
	if f.BrowserVersion != other.BrowserVersion {
		out = append(out, "browser_version")
	}
	return out
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	return major
}

func joinOr(fallback string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, " ")
}
