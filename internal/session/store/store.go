// Package store implements the refresh session store: opaque token issuance,
// single-use rotation, and the per-account device cap.
package store

import (
	"context"
	"errors"
	"time"

	"course-marketplace/backend/internal/security"
	"course-marketplace/backend/internal/session/domain"
	"course-marketplace/backend/internal/session/repository"
)

// ErrAlreadyRotated is returned when a rotation finds no row for the old
// token: the legitimate client already rotated, and this call is a replay.
var ErrAlreadyRotated = errors.New("refresh token already rotated")

// DeviceInfo is the device metadata snapshot carried on a session.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	DeviceType string
	UserAgent  string
	IPAddress  string
}

// Store issues and rotates refresh sessions on top of the repository.
type Store struct {
	repo       repository.Repository
	refreshTTL time.Duration
	maxDevices int
	nowF       func() time.Time
}

// New returns a Store. maxDevices bounds concurrent live sessions per account;
// exceeding it evicts the oldest sessions.
func New(repo repository.Repository, refreshTTL time.Duration, maxDevices int) *Store {
	if maxDevices <= 0 {
		maxDevices = 10
	}
	return &Store{
		repo:       repo,
		refreshTTL: refreshTTL,
		maxDevices: maxDevices,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Create generates a fresh opaque token, persists the session row, and returns
// both. When the account exceeds the device cap the oldest sessions are
// evicted, best-effort: concurrent logins may transiently exceed the cap.
func (s *Store) Create(ctx context.Context, accountID string, dev DeviceInfo) (*domain.RefreshSession, string, error) {
	token, err := security.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}
	now := s.nowF()
	sess := &domain.RefreshSession{
		TokenHash:  security.HashToken(token),
		AccountID:  accountID,
		DeviceID:   dev.DeviceID,
		DeviceName: dev.DeviceName,
		DeviceType: dev.DeviceType,
		UserAgent:  dev.UserAgent,
		IPAddress:  dev.IPAddress,
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, "", err
	}
	if n, err := s.repo.CountForAccount(ctx, accountID); err == nil && n > s.maxDevices {
		_ = s.repo.DeleteOldestForAccount(ctx, accountID, s.maxDevices)
	}
	return sess, token, nil
}

// GetByToken returns the session for the raw token, or nil when absent.
func (s *Store) GetByToken(ctx context.Context, token string) (*domain.RefreshSession, error) {
	return s.repo.GetByTokenHash(ctx, security.HashToken(token))
}

// Rotate deletes the old session and creates a replacement with the same
// device metadata and a fresh expiry. The delete is atomic: if the old token's
// row is already gone, Rotate fails with ErrAlreadyRotated so a replayed stale
// token cannot mint a second session.
func (s *Store) Rotate(ctx context.Context, oldToken string) (*domain.RefreshSession, string, error) {
	old, err := s.repo.DeleteByTokenHash(ctx, security.HashToken(oldToken))
	if err != nil {
		return nil, "", err
	}
	if old == nil {
		return nil, "", ErrAlreadyRotated
	}
	return s.Create(ctx, old.AccountID, DeviceInfo{
		DeviceID:   old.DeviceID,
		DeviceName: old.DeviceName,
		DeviceType: old.DeviceType,
		UserAgent:  old.UserAgent,
		IPAddress:  old.IPAddress,
	})
}

// Delete removes the session for the raw token, if present.
func (s *Store) Delete(ctx context.Context, token string) error {
	_, err := s.repo.DeleteByTokenHash(ctx, security.HashToken(token))
	return err
}

// DeleteAllForAccount removes every session for the account (logout, moderation).
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) error {
	return s.repo.DeleteAllForAccount(ctx, accountID)
}

// DeleteByDevice removes the account's sessions for one device.
func (s *Store) DeleteByDevice(ctx context.Context, accountID, deviceID string) error {
	return s.repo.DeleteByDevice(ctx, accountID, deviceID)
}

// TouchLastUsed records that the session was used at at, best-effort.
func (s *Store) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	return s.repo.TouchLastUsed(ctx, security.HashToken(token), at)
}
