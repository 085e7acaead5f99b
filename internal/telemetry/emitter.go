package telemetry

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"course-marketplace/backend/internal/audit"
)

// NewAuditEmitter returns an audit.AuditLogger that mirrors audit events as
// OTel log records via the given LoggerProvider. If provider is nil, returns a
// no-op logger.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.AuditLogger {
	if provider == nil {
		return noopLogger{}
	}
	return &auditEmitter{logger: provider.Logger("marketplace.audit")}
}

type noopLogger struct{}

func (noopLogger) LogEvent(context.Context, string, string, string, string, string) {}

type auditEmitter struct {
	logger otellog.Logger
}

// LogEvent emits one audit event as an OTel log record. Best-effort; the batch
// processor handles export failures.
func (e *auditEmitter) LogEvent(ctx context.Context, accountID, actor, action, reason, metadata string) {
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(action))
	rec.AddAttributes(otellog.String("account_id", accountID))
	if actor == "" {
		actor = audit.ActorSystem
	}
	rec.AddAttributes(otellog.String("actor", actor))
	if reason != "" {
		rec.AddAttributes(otellog.String("reason", reason))
	}
	if metadata != "" {
		rec.AddAttributes(otellog.String("metadata", metadata))
	}
	e.logger.Emit(ctx, rec)
}

// Fanout returns an audit.AuditLogger that forwards each event to every given
// logger. Nil entries are skipped.
func Fanout(loggers ...audit.AuditLogger) audit.AuditLogger {
	var out fanout
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type fanout []audit.AuditLogger

func (f fanout) LogEvent(ctx context.Context, accountID, actor, action, reason, metadata string) {
	for _, l := range f {
		l.LogEvent(ctx, accountID, actor, action, reason, metadata)
	}
}
