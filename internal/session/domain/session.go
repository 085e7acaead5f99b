package domain

import "time"

// RefreshSession is the durable record behind one refresh credential, bound to
// one device. Rows are keyed by the SHA-256 hash of the opaque token; the raw
// token exists only in the client's hands.
type RefreshSession struct {
	TokenHash  string
	AccountID  string
	DeviceID   string
	DeviceName string
	DeviceType string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session's natural expiry has passed at now.
func (s *RefreshSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
