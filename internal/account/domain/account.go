package domain

import (
	"errors"
	"time"
)

// Account is the core marketplace account entity.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Status       Status
	// Moderation fields; meaningful only when Status is suspended, banned,
	// deleted, or blocked. Until is set only for temporary sanctions.
	ModerationKind   ModerationKind
	ModerationReason string
	ModeratedAt      *time.Time
	ModerationUntil  *time.Time
	// Last-login snapshot, best-effort.
	LastLoginAt        *time.Time
	LastLoginIP        string
	LastLoginUserAgent string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Status is the account moderation status. Only StatusActive allows authentication.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusDeleted   Status = "deleted"
	StatusBlocked   Status = "blocked"
)

// ModerationKind distinguishes time-boxed sanctions from permanent ones.
type ModerationKind string

const (
	KindPermanent ModerationKind = "permanent"
	KindTemporary ModerationKind = "temporary"
)

// Role is the account's marketplace role, carried into access-token claims.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Validate validates the account for persistence. A temporary sanction without
// an until timestamp is invalid; a permanent one must not carry one.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Role == "" {
		a.Role = RoleStudent
	}
	switch a.Status {
	case StatusSuspended, StatusBanned:
		switch a.ModerationKind {
		case KindTemporary:
			if a.ModerationUntil == nil {
				return errors.New("temporary sanction requires an until timestamp")
			}
		case KindPermanent:
			if a.ModerationUntil != nil {
				return errors.New("permanent sanction must not carry an until timestamp")
			}
		default:
			return errors.New("suspended/banned account requires a moderation kind")
		}
	}
	return nil
}

// ModerationExpired reports whether the account carries a temporary sanction
// whose window has elapsed at now. Such accounts are due for reactivation.
func (a *Account) ModerationExpired(now time.Time) bool {
	if a.Status != StatusSuspended && a.Status != StatusBanned {
		return false
	}
	if a.ModerationKind != KindTemporary || a.ModerationUntil == nil {
		return false
	}
	return !a.ModerationUntil.After(now)
}
