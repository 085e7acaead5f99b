package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"course-marketplace/backend/internal/audit/domain"
	auditrepo "course-marketplace/backend/internal/audit/repository"
)

// ActorSystem is the actor recorded for events the platform triggers itself
// (scheduled reactivation, session purges).
const ActorSystem = "system"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. Used by the session service and the
// moderation service. LogEvent is best-effort: failures are logged and do not
// affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, accountID, actor, action, reason, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP
// extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	nowF        func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor
// for the client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit record. Best-effort: errors are logged and not
// returned.
func (l *Logger) LogEvent(ctx context.Context, accountID, actor, action, reason, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if actor == "" {
		actor = ActorSystem
	}
	rec := &domain.Record{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Actor:     actor,
		Action:    action,
		Reason:    reason,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.nowF(),
	}
	if err := l.repo.Create(ctx, rec); err != nil {
		log.Printf("audit: failed to log event %s on %s: %v", action, accountID, err)
	}
}
