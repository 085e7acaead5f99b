package revocation

import (
	"context"
	"database/sql"
	"time"

	"course-marketplace/backend/internal/security"
)

// PostgresStore is the durable denylist. Lookups are a single primary-key
// probe; the worker purges expired rows each tick.
type PostgresStore struct {
	db   *sql.DB
	nowF func() time.Time
}

// NewPostgresStore returns a denylist that uses the given db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:   db,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Block upserts the entry, keeping the longer block window on conflict.
func (s *PostgresStore) Block(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	until := s.nowF().Add(ttl)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_hash, blocked_until)
		VALUES ($1, $2)
		ON CONFLICT (token_hash)
		DO UPDATE SET blocked_until = GREATEST(revoked_tokens.blocked_until, EXCLUDED.blocked_until)`,
		security.HashToken(token), until,
	)
	return err
}

// IsBlocked reports whether token is currently blocked.
func (s *PostgresStore) IsBlocked(ctx context.Context, token string) (bool, error) {
	var blocked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens WHERE token_hash = $1 AND blocked_until > $2
		)`,
		security.HashToken(token), s.nowF(),
	).Scan(&blocked)
	if err != nil {
		return false, err
	}
	return blocked, nil
}

// PurgeExpired removes entries whose block window has passed at now.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE blocked_until <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
