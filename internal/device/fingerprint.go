// Package device derives stable device identifiers from client-reported
// request attributes.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Attributes is the client-reported signal set a fingerprint is computed from.
// All fields are optional strings as they arrive on the wire; empty means the
// client did not report the signal.
type Attributes struct {
	UserAgent           string
	Platform            string
	Timezone            string
	ScreenResolution    string
	HardwareConcurrency string
	DeviceMemory        string
	PixelRatio          string
	TouchSupport        string
}

// Fingerprint derives a deterministic device id from the attributes.
// Identical inputs always produce the same id. When the signal is too thin to
// be stable (no user agent, or fewer than two secondary signals) it returns
// "" and the caller should treat the device as new via RandomID.
func Fingerprint(a Attributes) string {
	ua := normalize(a.UserAgent)
	if ua == "" {
		return ""
	}
	secondary := []string{
		normalize(a.Platform),
		normalize(a.Timezone),
		normalize(a.ScreenResolution),
		normalize(a.HardwareConcurrency),
		normalize(a.DeviceMemory),
		normalize(a.PixelRatio),
		normalize(a.TouchSupport),
	}
	present := 0
	for _, s := range secondary {
		if s != "" {
			present++
		}
	}
	if present < 2 {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(ua))
	for _, s := range secondary {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RandomID returns a fresh random device id. Used when Fingerprint cannot
// produce a stable id, so two unknown devices never collide.
func RandomID() string {
	return uuid.NewString()
}

// Type classifies the device from its user agent.
func Type(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	case ua == "":
		return "unknown"
	default:
		return "desktop"
	}
}

// Name derives a short human-readable device name from the user agent,
// for display in session listings.
func Name(userAgent string) string {
	ua := strings.ToLower(userAgent)
	os := "Unknown"
	switch {
	case strings.Contains(ua, "iphone"):
		os = "iPhone"
	case strings.Contains(ua, "ipad"):
		os = "iPad"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		os = "Mac"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	}
	browser := ""
	switch {
	case strings.Contains(ua, "edg/"):
		browser = "Edge"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	}
	if browser == "" {
		return os
	}
	return os + " " + browser
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
