package repository

import (
	"context"

	"course-marketplace/backend/internal/audit/domain"
)

// Repository persists audit records.
type Repository interface {
	// Create persists the record. The record must have ID set.
	Create(ctx context.Context, rec *domain.Record) error
	// ListByAccount returns the account's records, newest first, paginated by
	// limit and offset.
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Record, error)
}
