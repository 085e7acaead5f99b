// Package moderation applies account sanctions and restores accounts whose
// time-boxed sanctions have lapsed.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "course-marketplace/backend/internal/account/domain"
	accountrepo "course-marketplace/backend/internal/account/repository"
	"course-marketplace/backend/internal/audit"
	auditdomain "course-marketplace/backend/internal/audit/domain"
)

// Sentinel errors for the moderation service; handlers map them to HTTP codes.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrStatusConflict  = errors.New("account status changed concurrently")
	ErrInvalidUntil    = errors.New("until must be in the future")
)

// AccountRepo is the minimal account repository needed by the moderation service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	ApplyModeration(ctx context.Context, id string, expected accountdomain.Status, m accountrepo.Moderation) (bool, error)
	ReactivateIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
}

// SessionDeleter voids refresh sessions when a sanction lands.
type SessionDeleter interface {
	DeleteAllForAccount(ctx context.Context, accountID string) error
}

// Service applies moderation transitions with guarded status updates, so two
// concurrent admin actions cannot silently overwrite each other.
type Service struct {
	accounts AccountRepo
	sessions SessionDeleter
	auditLog audit.AuditLogger
	nowF     func() time.Time
}

// NewService returns a moderation Service with the given dependencies.
func NewService(accounts AccountRepo, sessions SessionDeleter, auditLog audit.AuditLogger) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		auditLog: auditLog,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Suspend moves the account to suspended. A non-nil until makes the suspension
// temporary; the reconciler or a login will lift it once until passes.
func (s *Service) Suspend(ctx context.Context, accountID, actor, reason string, until *time.Time) error {
	return s.sanction(ctx, accountID, actor, accountdomain.StatusSuspended, auditdomain.ActionSuspend, reason, until)
}

// Ban moves the account to banned. A non-nil until makes the ban temporary.
func (s *Service) Ban(ctx context.Context, accountID, actor, reason string, until *time.Time) error {
	return s.sanction(ctx, accountID, actor, accountdomain.StatusBanned, auditdomain.ActionBan, reason, until)
}

// Block moves the account to blocked. Blocks are always indefinite and carry
// no detail payload toward the user.
func (s *Service) Block(ctx context.Context, accountID, actor, reason string) error {
	return s.sanction(ctx, accountID, actor, accountdomain.StatusBlocked, auditdomain.ActionBlock, reason, nil)
}

// Delete marks the account deleted. Deletion is terminal; only direct data
// intervention brings a deleted account back.
func (s *Service) Delete(ctx context.Context, accountID, actor, reason string) error {
	return s.sanction(ctx, accountID, actor, accountdomain.StatusDeleted, auditdomain.ActionDelete, reason, nil)
}

// Reactivate restores a suspended, banned, or blocked account to active by
// explicit admin action.
func (s *Service) Reactivate(ctx context.Context, accountID, actor string) error {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAccountNotFound
	}
	switch a.Status {
	case accountdomain.StatusSuspended, accountdomain.StatusBanned, accountdomain.StatusBlocked:
	default:
		return fmt.Errorf("%w: cannot reactivate account in status %s", ErrStatusConflict, a.Status)
	}
	changed, err := s.accounts.ApplyModeration(ctx, accountID, a.Status, accountrepo.Moderation{
		Status: accountdomain.StatusActive,
		At:     s.nowF(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return ErrStatusConflict
	}
	s.auditLog.LogEvent(ctx, accountID, actor, auditdomain.ActionReactivate, "", "")
	return nil
}

// ReconcileIfExpired lifts the account's temporary sanction when its until has
// passed. Shared by the login/refresh lazy path and the reconciler's scan; the
// guarded update makes it idempotent, so both paths racing produce exactly one
// transition and one audit record. Returns whether this call did the lift.
func (s *Service) ReconcileIfExpired(ctx context.Context, a *accountdomain.Account) (bool, error) {
	now := s.nowF()
	if a == nil || !a.ModerationExpired(now) {
		return false, nil
	}
	changed, err := s.accounts.ReactivateIfExpired(ctx, a.ID, now)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	a.Status = accountdomain.StatusActive
	a.ModerationKind = ""
	a.ModerationReason = ""
	a.ModeratedAt = nil
	a.ModerationUntil = nil
	s.auditLog.LogEvent(ctx, a.ID, audit.ActorSystem, auditdomain.ActionReactivate, "temporary sanction expired", "")
	return true, nil
}

func (s *Service) sanction(ctx context.Context, accountID, actor string, status accountdomain.Status, action, reason string, until *time.Time) error {
	now := s.nowF()
	var kind accountdomain.ModerationKind
	switch status {
	case accountdomain.StatusSuspended, accountdomain.StatusBanned:
		kind = accountdomain.KindPermanent
		if until != nil {
			if !until.After(now) {
				return ErrInvalidUntil
			}
			kind = accountdomain.KindTemporary
		}
	}

	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAccountNotFound
	}
	if a.Status == accountdomain.StatusDeleted {
		return fmt.Errorf("%w: account is deleted", ErrStatusConflict)
	}
	if a.Status == status {
		return fmt.Errorf("%w: account already %s", ErrStatusConflict, status)
	}

	changed, err := s.accounts.ApplyModeration(ctx, accountID, a.Status, accountrepo.Moderation{
		Status: status,
		Kind:   kind,
		Reason: reason,
		At:     now,
		Until:  until,
	})
	if err != nil {
		return err
	}
	if !changed {
		return ErrStatusConflict
	}

	// A sanctioned account loses every live session.
	if err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return err
	}
	s.auditLog.LogEvent(ctx, accountID, actor, action, reason, "")
	return nil
}
