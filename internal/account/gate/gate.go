// Package gate decides whether an account's moderation status allows
// authentication, and shapes the denial payload shown to the user.
package gate

import (
	"time"

	"course-marketplace/backend/internal/account/domain"
)

// Decision is the outcome of evaluating an account's status. When Allowed is
// false the remaining fields carry the denial payload for the status in
// question: suspensions and bans include reason, kind, and countdown; deletion
// includes reason and time; a block carries only the fact of blocking.
type Decision struct {
	Allowed   bool
	Status    domain.Status
	Temporary bool
	Reason    string
	At        *time.Time
	Until     *time.Time
}

// Evaluate is a pure read of the account's current status. Active is the only
// allowed state. Callers must give lazy reactivation a chance to run before
// evaluating, so an elapsed temporary sanction is not reported as a denial.
func Evaluate(a *domain.Account) Decision {
	switch a.Status {
	case domain.StatusActive:
		return Decision{Allowed: true, Status: domain.StatusActive}
	case domain.StatusSuspended, domain.StatusBanned:
		return Decision{
			Status:    a.Status,
			Temporary: a.ModerationKind == domain.KindTemporary,
			Reason:    a.ModerationReason,
			At:        a.ModeratedAt,
			Until:     a.ModerationUntil,
		}
	case domain.StatusDeleted:
		return Decision{
			Status: domain.StatusDeleted,
			Reason: a.ModerationReason,
			At:     a.ModeratedAt,
		}
	default:
		// Blocked, and any unrecognized status, denies with no detail.
		return Decision{Status: a.Status}
	}
}
