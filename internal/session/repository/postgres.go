package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"course-marketplace/backend/internal/session/domain"
)

// PostgresRepository persists refresh sessions using the given db.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `token_hash, account_id, device_id, device_name, device_type,
	user_agent, ip_address, expires_at, last_used_at, created_at`

// Create persists the session row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.TokenHash, s.AccountID, s.DeviceID, nullString(s.DeviceName), nullString(s.DeviceType),
		nullString(s.UserAgent), nullString(s.IPAddress), s.ExpiresAt, nullTime(s.LastUsedAt), s.CreatedAt,
	)
	return err
}

// GetByTokenHash returns the session for tokenHash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = $1`, tokenHash)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// DeleteByTokenHash deletes the session and returns the deleted row, or
// (nil, nil) when no row matched. The single DELETE ... RETURNING makes a
// concurrent duplicate rotation of the same token observable: exactly one
// caller gets the row.
func (r *PostgresRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM refresh_sessions WHERE token_hash = $1 RETURNING `+sessionColumns, tokenHash)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// DeleteAllForAccount removes every session for the account.
func (r *PostgresRepository) DeleteAllForAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE account_id = $1`, accountID)
	return err
}

// DeleteByDevice removes the account's sessions for one device.
func (r *PostgresRepository) DeleteByDevice(ctx context.Context, accountID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE account_id = $1 AND device_id = $2`, accountID, deviceID)
	return err
}

// CountForAccount returns the number of live sessions for the account.
func (r *PostgresRepository) CountForAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_sessions WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}

// DeleteOldestForAccount removes the oldest sessions so at most keep remain.
func (r *PostgresRepository) DeleteOldestForAccount(ctx context.Context, accountID string, keep int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_sessions
		WHERE token_hash IN (
			SELECT token_hash FROM refresh_sessions
			WHERE account_id = $1
			ORDER BY created_at DESC
			OFFSET $2
		)`, accountID, keep)
	return err
}

// DeleteExpired removes sessions whose expiry has passed at now. Returns the number deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TouchLastUsed sets the session's last-used timestamp. Zero rows affected is not an error.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET last_used_at = $1 WHERE token_hash = $2`, at, tokenHash)
	return err
}

func scanSession(row *sql.Row) (*domain.RefreshSession, error) {
	var s domain.RefreshSession
	var name, typ, ua, ip sql.NullString
	var lastUsed sql.NullTime
	err := row.Scan(
		&s.TokenHash, &s.AccountID, &s.DeviceID, &name, &typ,
		&ua, &ip, &s.ExpiresAt, &lastUsed, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.DeviceName = name.String
	s.DeviceType = typ.String
	s.UserAgent = ua.String
	s.IPAddress = ip.String
	s.LastUsedAt = nullTimeToPtr(lastUsed)
	return &s, nil
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
