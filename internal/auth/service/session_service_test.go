package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountdomain "course-marketplace/backend/internal/account/domain"
	"course-marketplace/backend/internal/device"
	"course-marketplace/backend/internal/revocation"
	"course-marketplace/backend/internal/security"
	sessiondomain "course-marketplace/backend/internal/session/domain"
	"course-marketplace/backend/internal/session/store"
)

type memAccounts struct {
	mu sync.Mutex
	m  map[string]*accountdomain.Account
}

func newMemAccounts(accounts ...*accountdomain.Account) *memAccounts {
	r := &memAccounts{m: make(map[string]*accountdomain.Account)}
	for _, a := range accounts {
		a2 := *a
		r.m[a.ID] = &a2
	}
	return r
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	a2 := *a
	return &a2, nil
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.Email == email {
			a2 := *a
			return &a2, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) Create(ctx context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a2 := *a
	r.m[a.ID] = &a2
	return nil
}

func (r *memAccounts) UpdateLoginSnapshot(ctx context.Context, id string, at time.Time, ip, userAgent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.m[id]; ok {
		a.LastLoginAt = &at
		a.LastLoginIP = ip
		a.LastLoginUserAgent = userAgent
	}
	return nil
}

func (r *memAccounts) reactivate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.m[id]; ok {
		a.Status = accountdomain.StatusActive
		a.ModerationKind = ""
		a.ModerationReason = ""
		a.ModeratedAt = nil
		a.ModerationUntil = nil
	}
}

// lazyReconciler reactivates accounts whose temporary sanction has lapsed,
// mirroring the moderation service's guarded update.
type lazyReconciler struct {
	accounts *memAccounts
	calls    int
}

func (l *lazyReconciler) ReconcileIfExpired(ctx context.Context, a *accountdomain.Account) (bool, error) {
	l.calls++
	if a == nil || !a.ModerationExpired(time.Now().UTC()) {
		return false, nil
	}
	l.accounts.reactivate(a.ID)
	a.Status = accountdomain.StatusActive
	a.ModerationKind = ""
	a.ModerationUntil = nil
	return true, nil
}

type memSessRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.RefreshSession
}

func newMemSessRepo() *memSessRepo {
	return &memSessRepo{m: make(map[string]*sessiondomain.RefreshSession)}
}

func (r *memSessRepo) Create(ctx context.Context, s *sessiondomain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.TokenHash] = &s2
	return nil
}

func (r *memSessRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[tokenHash], nil
}

func (r *memSessRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[tokenHash]
	if !ok {
		return nil, nil
	}
	delete(r.m, tokenHash)
	return s, nil
}

func (r *memSessRepo) DeleteAllForAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.m {
		if s.AccountID == accountID {
			delete(r.m, k)
		}
	}
	return nil
}

func (r *memSessRepo) DeleteByDevice(ctx context.Context, accountID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.m {
		if s.AccountID == accountID && s.DeviceID == deviceID {
			delete(r.m, k)
		}
	}
	return nil
}

func (r *memSessRepo) CountForAccount(ctx context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.m {
		if s.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (r *memSessRepo) DeleteOldestForAccount(ctx context.Context, accountID string, keep int) error {
	return nil
}

func (r *memSessRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (r *memSessRepo) TouchLastUsed(ctx context.Context, tokenHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[tokenHash]; ok {
		s.LastUsedAt = &at
	}
	return nil
}

type nopAudit struct{}

func (nopAudit) LogEvent(ctx context.Context, accountID, actor, action, reason, metadata string) {}

// failingRevocation errors on every call, to exercise fail-open vs fail-closed.
type failingRevocation struct{}

func (failingRevocation) Block(ctx context.Context, token string, ttl time.Duration) error {
	return errors.New("revocation store down")
}

func (failingRevocation) IsBlocked(ctx context.Context, token string) (bool, error) {
	return false, errors.New("revocation store down")
}

func (failingRevocation) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, errors.New("revocation store down")
}

const (
	testPassword = "Sup3r-Secret-Pass!"
	testUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0"
)

func fullAttributes() device.Attributes {
	return device.Attributes{
		UserAgent:        testUA,
		Platform:         "Win32",
		Timezone:         "Europe/Berlin",
		ScreenResolution: "1920x1080",
	}
}

type fixture struct {
	svc        *SessionService
	accounts   *memAccounts
	sessRepo   *memSessRepo
	revocation revocation.Store
	reconcile  *lazyReconciler
	hasher     *security.Hasher
}

func newFixture(t *testing.T, accounts ...*accountdomain.Account) *fixture {
	t.Helper()
	hasher := security.NewHasher(4)
	accRepo := newMemAccounts(accounts...)
	sessRepo := newMemSessRepo()
	rev := revocation.NewMemoryStore()
	rec := &lazyReconciler{accounts: accRepo}
	codec, err := security.NewTestTokenCodec(15 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	svc := NewSessionService(
		accRepo,
		store.New(sessRepo, 14*24*time.Hour, 10),
		rev,
		codec,
		hasher,
		rec,
		nopAudit{},
		false,
	)
	return &fixture{svc: svc, accounts: accRepo, sessRepo: sessRepo, revocation: rev, reconcile: rec, hasher: hasher}
}

func (f *fixture) addAccount(t *testing.T, id, email string, status accountdomain.Status) *accountdomain.Account {
	t.Helper()
	hash, err := f.hasher.Hash([]byte(testPassword))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := &accountdomain.Account{
		ID:           id,
		Email:        email,
		Name:         "Test Account",
		PasswordHash: hash,
		Role:         accountdomain.RoleStudent,
		Status:       status,
	}
	if err := f.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	id, err := f.svc.Register(context.Background(), "Student@Example.com ", "Ada", testPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, _ := f.accounts.GetByID(context.Background(), id)
	if a == nil {
		t.Fatal("account not persisted")
	}
	if a.Email != "student@example.com" {
		t.Errorf("email = %q, want normalized lowercase", a.Email)
	}
	if a.Status != accountdomain.StatusActive || a.Role != accountdomain.RoleStudent {
		t.Errorf("new account: %s/%s", a.Status, a.Role)
	}
	if err := f.hasher.Compare(a.PasswordHash, []byte(testPassword)); err != nil {
		t.Error("stored hash does not match password")
	}

	if _, err := f.svc.Register(context.Background(), "student@example.com", "Ada", testPassword); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate email: want ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)
	for _, pw := range []string{"short1A!", "nouppercase-12345!", "NOLOWERCASE-12345!", "NoSymbolsHere123", "No-Digits-Here!"} {
		if _, err := f.svc.Register(context.Background(), "a@example.com", "A", pw); err == nil {
			t.Errorf("password %q accepted", pw)
		}
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)

	res, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{
		IP: "203.0.113.7", UserAgent: testUA, Attributes: fullAttributes(),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	if res.DeviceID == "" {
		t.Error("missing device id")
	}
	if res.DeviceID != device.Fingerprint(fullAttributes()) {
		t.Error("device id should be the deterministic fingerprint")
	}
	if n, _ := f.sessRepo.CountForAccount(context.Background(), "acc-1"); n != 1 {
		t.Errorf("sessions: got %d, want 1", n)
	}
	a, _ := f.accounts.GetByID(context.Background(), "acc-1")
	if a.LastLoginAt == nil || a.LastLoginIP != "203.0.113.7" {
		t.Error("login snapshot not recorded")
	}
}

func TestLogin_FallsBackToRandomDevice(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)

	res1, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	res2, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res1.DeviceID == "" || res1.DeviceID == res2.DeviceID {
		t.Error("unknown devices must get distinct random ids")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)

	if _, err := f.svc.Login(context.Background(), "student@example.com", "Wrong-Password-123!", RequestContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "nobody@example.com", testPassword, RequestContext{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_DeniedSuspended(t *testing.T) {
	f := newFixture(t)
	a := f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusSuspended)
	until := time.Now().UTC().Add(48 * time.Hour)
	a.ModerationKind = accountdomain.KindTemporary
	a.ModerationReason = "spam reports"
	a.ModerationUntil = &until
	_ = f.accounts.Create(context.Background(), a)

	_, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{})
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("want DeniedError, got %v", err)
	}
	d := denied.Decision
	if d.Allowed || d.Status != accountdomain.StatusSuspended || !d.Temporary {
		t.Errorf("decision: %+v", d)
	}
	if d.Reason != "spam reports" || d.Until == nil {
		t.Errorf("denial payload incomplete: %+v", d)
	}
}

func TestLogin_LazyReactivation(t *testing.T) {
	f := newFixture(t)
	a := f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusSuspended)
	until := time.Now().UTC().Add(-time.Minute)
	a.ModerationKind = accountdomain.KindTemporary
	a.ModerationUntil = &until
	_ = f.accounts.Create(context.Background(), a)

	res, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{})
	if err != nil {
		t.Fatalf("login after lapsed suspension: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("expected tokens after lazy reactivation")
	}
	got, _ := f.accounts.GetByID(context.Background(), "acc-1")
	if got.Status != accountdomain.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func login(t *testing.T, f *fixture) *AuthResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), "student@example.com", testPassword, RequestContext{
		UserAgent: testUA, Attributes: fullAttributes(),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res
}

func TestRefresh_RotatesTokens(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	res, err := f.svc.Refresh(context.Background(), first.RefreshToken, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken == first.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if res.AccessToken == "" {
		t.Error("missing access token")
	}
	if res.DeviceID != first.DeviceID {
		t.Error("device binding lost across rotation")
	}

	// The old token is single-use.
	if _, err := f.svc.Refresh(context.Background(), first.RefreshToken, ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("replayed token: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Refresh(context.Background(), "no-such-token", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("want ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("empty token: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefresh_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	// Age the stored session past its expiry.
	h := security.HashToken(first.RefreshToken)
	f.sessRepo.mu.Lock()
	f.sessRepo.m[h].ExpiresAt = time.Now().UTC().Add(-time.Hour)
	f.sessRepo.mu.Unlock()

	if _, err := f.svc.Refresh(context.Background(), first.RefreshToken, ""); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
	if s, _ := f.sessRepo.GetByTokenHash(context.Background(), h); s != nil {
		t.Error("expired session row should have been deleted")
	}
}

func TestRefresh_DeniedAccountLosesAllSessions(t *testing.T) {
	f := newFixture(t)
	a := f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)
	second := login(t, f)

	a.Status = accountdomain.StatusBanned
	a.ModerationKind = accountdomain.KindPermanent
	a.ModerationReason = "fraud"
	_ = f.accounts.Create(context.Background(), a)

	_, err := f.svc.Refresh(context.Background(), first.RefreshToken, "")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("want DeniedError, got %v", err)
	}
	if denied.Decision.Status != accountdomain.StatusBanned {
		t.Errorf("decision status = %s, want banned", denied.Decision.Status)
	}
	if n, _ := f.sessRepo.CountForAccount(context.Background(), "acc-1"); n != 0 {
		t.Errorf("sessions after denial: got %d, want 0 (account-wide revocation)", n)
	}
	_ = second
}

func TestRefresh_ReusesValidAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	res, err := f.svc.Refresh(context.Background(), first.RefreshToken, first.AccessToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken != first.AccessToken {
		t.Error("still-valid access token should be reused")
	}
	if res.RefreshToken == first.RefreshToken {
		t.Error("refresh token must rotate even when access token is reused")
	}
}

func TestRefresh_DoesNotReuseBlockedAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	if err := f.revocation.Block(context.Background(), first.AccessToken, time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}
	res, err := f.svc.Refresh(context.Background(), first.RefreshToken, first.AccessToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken == first.AccessToken {
		t.Error("denylisted access token must not be reused")
	}
}

func TestLogout_AccountWide(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)
	second := login(t, f)

	if err := f.svc.Logout(context.Background(), first.AccessToken, "acc-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n, _ := f.sessRepo.CountForAccount(context.Background(), "acc-1"); n != 0 {
		t.Errorf("sessions after logout: got %d, want 0", n)
	}
	blocked, err := f.revocation.IsBlocked(context.Background(), first.AccessToken)
	if err != nil || !blocked {
		t.Errorf("access token should be denylisted after logout: blocked=%v err=%v", blocked, err)
	}
	// The sibling device's access token stays valid until its natural expiry.
	if blocked, _ := f.revocation.IsBlocked(context.Background(), second.AccessToken); blocked {
		t.Error("other access tokens are not denylisted on logout")
	}
}

func TestLogout_FailClosed(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	f.svc.revocation = failingRevocation{}
	if err := f.svc.Logout(context.Background(), first.AccessToken, "acc-1"); err == nil {
		t.Error("fail-closed logout must surface revocation store failure")
	}
	if n, _ := f.sessRepo.CountForAccount(context.Background(), "acc-1"); n == 0 {
		t.Error("fail-closed logout should abort before deleting sessions")
	}
}

func TestLogout_FailOpen(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	f.svc.revocation = failingRevocation{}
	f.svc.failOpen = true
	if err := f.svc.Logout(context.Background(), first.AccessToken, "acc-1"); err != nil {
		t.Fatalf("fail-open logout: %v", err)
	}
	if n, _ := f.sessRepo.CountForAccount(context.Background(), "acc-1"); n != 0 {
		t.Error("fail-open logout should still delete sessions")
	}
}

func TestForceLogout_AlwaysFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)
	first := login(t, f)

	f.svc.revocation = failingRevocation{}
	f.svc.failOpen = true
	if err := f.svc.ForceLogout(context.Background(), first.AccessToken, "acc-1", "admin-1"); err == nil {
		t.Error("forced logout must fail closed regardless of failOpen")
	}
}

func TestCheckStatus(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusActive)

	d, err := f.svc.CheckStatus(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if !d.Allowed {
		t.Error("active account should be allowed")
	}
	if _, err := f.svc.CheckStatus(context.Background(), "nope"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("want ErrAccountNotFound, got %v", err)
	}
}

func TestCheckStatus_LazyReactivation(t *testing.T) {
	f := newFixture(t)
	a := f.addAccount(t, "acc-1", "student@example.com", accountdomain.StatusBanned)
	until := time.Now().UTC().Add(-time.Minute)
	a.ModerationKind = accountdomain.KindTemporary
	a.ModerationUntil = &until
	_ = f.accounts.Create(context.Background(), a)

	d, err := f.svc.CheckStatus(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if !d.Allowed {
		t.Errorf("lapsed ban should read as allowed: %+v", d)
	}
}
