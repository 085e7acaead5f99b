package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"course-marketplace/backend/internal/account/domain"
)

// PostgresRepository persists accounts using the given db.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, name, password_hash, role, status,
	moderation_kind, moderation_reason, moderated_at, moderation_until,
	last_login_at, last_login_ip, last_login_user_agent, created_at, updated_at`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account with the given email, or nil if not found.
// Deleted accounts are still returned; the status gate denies them.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.Email, nullString(a.Name), a.PasswordHash, string(a.Role), string(a.Status),
		nullString(string(a.ModerationKind)), nullString(a.ModerationReason),
		nullTime(a.ModeratedAt), nullTime(a.ModerationUntil),
		nullTime(a.LastLoginAt), nullString(a.LastLoginIP), nullString(a.LastLoginUserAgent),
		a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// ApplyModeration transitions the account from expected to m.Status in one
// guarded UPDATE. Returns false when zero rows matched.
func (r *PostgresRepository) ApplyModeration(ctx context.Context, id string, expected domain.Status, m Moderation) (bool, error) {
	moderatedAt := sql.NullTime{Time: m.At, Valid: m.Status != domain.StatusActive}
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = $1, moderation_kind = $2, moderation_reason = $3,
		    moderated_at = $4, moderation_until = $5, updated_at = $6
		WHERE id = $7 AND status = $8`,
		string(m.Status), nullString(string(m.Kind)), nullString(m.Reason),
		moderatedAt, nullTime(m.Until), m.At, id, string(expected),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReactivateIfExpired restores an elapsed temporary suspension/ban to active.
// The WHERE guard makes the transition idempotent under concurrent lazy and
// scheduled reconciliation: only one caller observes rows affected.
func (r *PostgresRepository) ReactivateIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = $1, moderation_kind = NULL, moderation_reason = NULL,
		    moderated_at = NULL, moderation_until = NULL, updated_at = $2
		WHERE id = $3
		  AND status IN ($4, $5)
		  AND moderation_kind = $6
		  AND moderation_until <= $2`,
		string(domain.StatusActive), now, id,
		string(domain.StatusSuspended), string(domain.StatusBanned), string(domain.KindTemporary),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListModerationExpired returns accounts whose temporary sanction has elapsed at now.
func (r *PostgresRepository) ListModerationExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE status IN ($1, $2) AND moderation_kind = $3 AND moderation_until <= $4
		ORDER BY moderation_until
		LIMIT $5`,
		string(domain.StatusSuspended), string(domain.StatusBanned), string(domain.KindTemporary), now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateLoginSnapshot records last-login metadata. Zero rows affected is not an error.
func (r *PostgresRepository) UpdateLoginSnapshot(ctx context.Context, id string, at time.Time, ip, userAgent string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_login_at = $1, last_login_ip = $2, last_login_user_agent = $3
		WHERE id = $4`,
		at, nullString(ip), nullString(userAgent), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	a, err := scanAccountRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanAccountRows(s rowScanner) (*domain.Account, error) {
	var a domain.Account
	var name, kind, reason, ip, ua sql.NullString
	var moderatedAt, until, lastLogin sql.NullTime
	err := s.Scan(
		&a.ID, &a.Email, &name, &a.PasswordHash, &a.Role, &a.Status,
		&kind, &reason, &moderatedAt, &until,
		&lastLogin, &ip, &ua, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Name = name.String
	a.ModerationKind = domain.ModerationKind(kind.String)
	a.ModerationReason = reason.String
	a.ModeratedAt = nullTimeToPtr(moderatedAt)
	a.ModerationUntil = nullTimeToPtr(until)
	a.LastLoginAt = nullTimeToPtr(lastLogin)
	a.LastLoginIP = ip.String
	a.LastLoginUserAgent = ua.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
