package repository

import (
	"context"
	"time"

	"course-marketplace/backend/internal/account/domain"
)

// Moderation carries the fields of one moderation transition.
type Moderation struct {
	Status domain.Status
	Kind   domain.ModerationKind
	Reason string
	At     time.Time
	Until  *time.Time
}

// Repository defines persistence for accounts. Status mutations are expressed
// as conditional updates guarded by the expected previous state; plain
// read-modify-write is not offered for moderation fields.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	// ApplyModeration transitions the account from expected to m.Status.
	// Returns false when the account was not in the expected status (lost race
	// or stale read); the caller must not treat that as success.
	ApplyModeration(ctx context.Context, id string, expected domain.Status, m Moderation) (bool, error)
	// ReactivateIfExpired atomically restores the account to active when it
	// carries a temporary suspension/ban whose until has passed. Returns true
	// only when this call performed the transition, so concurrent lazy and
	// scheduled reconciliation record at most one reactivation.
	ReactivateIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
	// ListModerationExpired returns accounts due for reactivation at now.
	ListModerationExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Account, error)
	// UpdateLoginSnapshot records last-login metadata, best-effort.
	UpdateLoginSnapshot(ctx context.Context, id string, at time.Time, ip, userAgent string) error
}
