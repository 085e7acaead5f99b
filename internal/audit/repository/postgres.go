package repository

import (
	"context"
	"database/sql"

	"course-marketplace/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for
// persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, account_id, actor, action, reason, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.AccountID, rec.Actor, rec.Action,
		nullString(rec.Reason), rec.IP, nullString(rec.Metadata), rec.CreatedAt,
	)
	return err
}

// ListByAccount returns the account's records, newest first.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, actor, action, reason, ip, metadata, created_at
		FROM audit_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		var reason, metadata sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Actor, &rec.Action, &reason, &rec.IP, &metadata, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Reason = reason.String
		rec.Metadata = metadata.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
