// Package revocation tracks access credentials that must be rejected before
// their natural expiry (logout, forced admin logout). Entries live only as
// long as the credential would have: blocks are never extended past the
// token's own lifetime and never shortened once set.
package revocation

import (
	"context"
	"time"
)

// Store is the access-credential denylist. Block and IsBlocked operate on the
// raw token string; implementations key entries by its SHA-256 hash.
type Store interface {
	// Block records that token must be rejected for the next ttl. Blocking a
	// token that is already blocked keeps the longer of the two windows.
	Block(ctx context.Context, token string, ttl time.Duration) error
	// IsBlocked reports whether token is currently blocked.
	IsBlocked(ctx context.Context, token string) (bool, error)
	// PurgeExpired drops entries whose block window has passed. Returns the
	// number removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
