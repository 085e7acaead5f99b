package moderation

import (
	"context"
	"log"
	"time"

	accountdomain "course-marketplace/backend/internal/account/domain"
)

const defaultBatchSize = 100

// ExpiredLister scans for accounts whose temporary sanction has lapsed.
type ExpiredLister interface {
	ListModerationExpired(ctx context.Context, now time.Time, limit int) ([]*accountdomain.Account, error)
}

// SessionPurger removes refresh sessions past their natural expiry.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevocationPurger removes denylist entries whose block window has passed.
type RevocationPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reconciler periodically restores accounts whose time-boxed sanction has
// expired and purges dead session and revocation rows. Reactivation goes
// through the same guarded update as the login-time lazy path, so a tick
// racing a login converges on exactly one transition.
type Reconciler struct {
	svc        *Service
	accounts   ExpiredLister
	sessions   SessionPurger
	revocation RevocationPurger
	interval   time.Duration
	batchSize  int
	nowF       func() time.Time
}

// NewReconciler returns a Reconciler. sessions and revocation may be nil; then
// the corresponding purge is skipped.
func NewReconciler(svc *Service, accounts ExpiredLister, sessions SessionPurger, revocation RevocationPurger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		svc:        svc,
		accounts:   accounts,
		sessions:   sessions,
		revocation: revocation,
		interval:   interval,
		batchSize:  defaultBatchSize,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until ctx is cancelled. Ticks are sequential; a slow tick delays
// the next rather than overlapping it.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	log.Printf("reconciler: running every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				log.Printf("reconciler: tick failed: %v", err)
			}
		}
	}
}

// Tick runs one reconciliation pass: reactivate every account whose sanction
// has lapsed, then purge expired sessions and revocation entries.
func (r *Reconciler) Tick(ctx context.Context) error {
	now := r.nowF()
	for {
		expired, err := r.accounts.ListModerationExpired(ctx, now, r.batchSize)
		if err != nil {
			return err
		}
		changed := 0
		for _, a := range expired {
			ok, err := r.svc.ReconcileIfExpired(ctx, a)
			if err != nil {
				log.Printf("reconciler: reactivate %s failed: %v", a.ID, err)
				continue
			}
			if ok {
				changed++
			}
		}
		// Stop when the batch was short or nothing moved, so a batch of
		// persistently failing rows cannot spin the loop.
		if len(expired) < r.batchSize || changed == 0 {
			break
		}
	}

	if r.sessions != nil {
		if n, err := r.sessions.DeleteExpired(ctx, now); err != nil {
			log.Printf("reconciler: session purge failed: %v", err)
		} else if n > 0 {
			log.Printf("reconciler: purged %d expired sessions", n)
		}
	}
	if r.revocation != nil {
		if n, err := r.revocation.PurgeExpired(ctx, now); err != nil {
			log.Printf("reconciler: revocation purge failed: %v", err)
		} else if n > 0 {
			log.Printf("reconciler: purged %d expired revocations", n)
		}
	}
	return nil
}
