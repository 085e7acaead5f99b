package audit

import (
	"context"
	"errors"
	"testing"

	"course-marketplace/backend/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	records   []*domain.Record
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, rec *domain.Record) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAuditRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Record, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor)

	logger.LogEvent(context.Background(), "acc-1", "admin-1", domain.ActionSuspend, "spam", `{"until":"2026-10-01"}`)

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
	rec := repo.records[0]
	if rec.AccountID != "acc-1" {
		t.Errorf("account_id = %q, want %q", rec.AccountID, "acc-1")
	}
	if rec.Actor != "admin-1" {
		t.Errorf("actor = %q, want %q", rec.Actor, "admin-1")
	}
	if rec.Action != domain.ActionSuspend {
		t.Errorf("action = %q, want %q", rec.Action, domain.ActionSuspend)
	}
	if rec.Reason != "spam" {
		t.Errorf("reason = %q, want %q", rec.Reason, "spam")
	}
	if rec.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", rec.IP, "192.168.1.1")
	}
	if rec.ID == "" {
		t.Error("record ID should be set")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("record CreatedAt should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), "acc-1", "admin-1", domain.ActionBan, "", "")

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
	if repo.records[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.records[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_EmptyActorIsSystem(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), "acc-1", "", domain.ActionReactivate, "", "")

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
	if repo.records[0].Actor != ActorSystem {
		t.Errorf("actor = %q, want %q", repo.records[0].Actor, ActorSystem)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{
		createErr: errors.New("database error"),
	}
	logger := NewLogger(repo, nil)

	// Should not panic or return error - best-effort logging
	logger.LogEvent(context.Background(), "acc-1", "admin-1", domain.ActionLogout, "", "")
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil)

	// Should not panic - no-op when repo is nil
	logger.LogEvent(context.Background(), "acc-1", "admin-1", domain.ActionLogout, "", "")
}
