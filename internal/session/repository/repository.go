package repository

import (
	"context"
	"time"

	"course-marketplace/backend/internal/session/domain"
)

// Repository defines persistence for refresh sessions. All lookups are by
// token hash; callers hash the raw token before reaching this layer.
type Repository interface {
	Create(ctx context.Context, s *domain.RefreshSession) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	// DeleteByTokenHash deletes and returns the session in one statement.
	// Returns (nil, nil) when no row matched, which rotation treats as
	// "already rotated" rather than success.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	DeleteAllForAccount(ctx context.Context, accountID string) error
	DeleteByDevice(ctx context.Context, accountID, deviceID string) error
	CountForAccount(ctx context.Context, accountID string) (int, error)
	// DeleteOldestForAccount removes the oldest sessions so at most keep remain.
	DeleteOldestForAccount(ctx context.Context, accountID string, keep int) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, tokenHash string, at time.Time) error
}
