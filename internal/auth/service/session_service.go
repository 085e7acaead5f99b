// Package service orchestrates login, refresh rotation, logout, and account
// status checks over the credential codec, the refresh session store, the
// revocation denylist, and the account status gate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "course-marketplace/backend/internal/account/domain"
	"course-marketplace/backend/internal/account/gate"
	"course-marketplace/backend/internal/audit"
	auditdomain "course-marketplace/backend/internal/audit/domain"
	"course-marketplace/backend/internal/device"
	"course-marketplace/backend/internal/revocation"
	"course-marketplace/backend/internal/security"
	"course-marketplace/backend/internal/session/store"
)

// Sentinel errors for the session service; handlers map them to HTTP codes.
var (
	ErrValidation             = errors.New("validation failed")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenExpired    = errors.New("refresh token expired; authenticate again")
	ErrAccountNotFound        = errors.New("account not found")
)

// DeniedError carries the status gate's denial payload to the handler layer.
type DeniedError struct {
	Decision gate.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("account is %s", e.Decision.Status)
}

// AccountRepo is the minimal account repository needed by the session service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	UpdateLoginSnapshot(ctx context.Context, id string, at time.Time, ip, userAgent string) error
}

// Reconciler lifts an elapsed temporary sanction before the gate runs.
type Reconciler interface {
	ReconcileIfExpired(ctx context.Context, a *accountdomain.Account) (bool, error)
}

// RequestContext carries per-request client metadata into login.
type RequestContext struct {
	IP         string
	UserAgent  string
	Attributes device.Attributes
}

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountID    string
	Email        string
	Name         string
	Role         accountdomain.Role
	DeviceID     string
}

// SessionService implements register, login, refresh, logout, and status checks.
type SessionService struct {
	accounts   AccountRepo
	sessions   *store.Store
	revocation revocation.Store
	codec      *security.TokenCodec
	hasher     *security.Hasher
	reconcile  Reconciler
	auditLog   audit.AuditLogger
	// failOpen controls logout behavior when the revocation store is down:
	// true logs and proceeds, false fails the logout. Forced admin logout
	// always fails closed.
	failOpen bool
	nowF     func() time.Time
}

// NewSessionService returns a SessionService with the given dependencies.
func NewSessionService(
	accounts AccountRepo,
	sessions *store.Store,
	revocationStore revocation.Store,
	codec *security.TokenCodec,
	hasher *security.Hasher,
	reconcile Reconciler,
	auditLog audit.AuditLogger,
	failOpen bool,
) *SessionService {
	return &SessionService{
		accounts:   accounts,
		sessions:   sessions,
		revocation: revocationStore,
		codec:      codec,
		hasher:     hasher,
		reconcile:  reconcile,
		auditLog:   auditLog,
		failOpen:   failOpen,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an active student account with the given email and
// password. Returns the new account's id; the caller must Login for tokens.
func (s *SessionService) Register(ctx context.Context, email, name, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validatePassword(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return "", err
	}
	now := s.nowF()
	a := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Role:         accountdomain.RoleStudent,
		Status:       accountdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Validate(); err != nil {
		return "", err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return "", err
	}
	s.auditLog.LogEvent(ctx, a.ID, a.ID, auditdomain.ActionRegister, "", "")
	return a.ID, nil
}

// Login authenticates with email and password and mints an access credential
// plus a refresh session bound to the caller's device. The response never
// distinguishes an unknown email from a wrong password.
func (s *SessionService) Login(ctx context.Context, email, password string, req RequestContext) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if a == nil || a.PasswordHash == "" {
		// Burn a comparison anyway so a missing account costs the same as a
		// wrong password.
		_ = s.hasher.Compare(dummyPasswordHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Lazy reactivation: a login exactly when the sanction lapses gets in
	// without waiting for the next reconciler tick.
	if _, err := s.reconcile.ReconcileIfExpired(ctx, a); err != nil {
		return nil, err
	}
	if d := gate.Evaluate(a); !d.Allowed {
		return nil, &DeniedError{Decision: d}
	}

	deviceID := device.Fingerprint(req.Attributes)
	if deviceID == "" {
		deviceID = device.RandomID()
	}
	accessToken, expiresAt, err := s.codec.Issue(a.ID, deviceID, map[string]string{"role": string(a.Role)})
	if err != nil {
		return nil, err
	}
	_, refreshToken, err := s.sessions.Create(ctx, a.ID, store.DeviceInfo{
		DeviceID:   deviceID,
		DeviceName: device.Name(req.UserAgent),
		DeviceType: device.Type(req.UserAgent),
		UserAgent:  req.UserAgent,
		IPAddress:  req.IP,
	})
	if err != nil {
		return nil, err
	}

	// Snapshot login metadata, best-effort.
	if err := s.accounts.UpdateLoginSnapshot(ctx, a.ID, s.nowF(), req.IP, req.UserAgent); err != nil {
		log.Printf("auth: login snapshot for %s failed: %v", a.ID, err)
	}
	s.auditLog.LogEvent(ctx, a.ID, a.ID, auditdomain.ActionLogin, "", "")

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		AccountID:    a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		DeviceID:     deviceID,
	}, nil
}

// Refresh rotates the refresh session and returns fresh tokens. A still-valid
// currentAccessToken for the same account and device is reused instead of
// re-signing; the status gate runs regardless.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, currentAccessToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefreshToken
	}
	now := s.nowF()
	if sess.Expired(now) {
		_ = s.sessions.Delete(ctx, refreshToken)
		return nil, ErrRefreshTokenExpired
	}
	if err := s.sessions.TouchLastUsed(ctx, refreshToken, now); err != nil {
		log.Printf("auth: last-used update for account %s failed: %v", sess.AccountID, err)
	}

	a, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		// Session row outlived its account; void the orphans.
		log.Printf("auth: session references missing account %s, revoking all", sess.AccountID)
		_ = s.sessions.DeleteAllForAccount(ctx, sess.AccountID)
		return nil, ErrInvalidRefreshToken
	}
	if _, err := s.reconcile.ReconcileIfExpired(ctx, a); err != nil {
		return nil, err
	}
	if d := gate.Evaluate(a); !d.Allowed {
		// A denied account loses every live session, not just this one.
		_ = s.sessions.DeleteAllForAccount(ctx, a.ID)
		return nil, &DeniedError{Decision: d}
	}

	accessToken, expiresAt, reused := s.reusableAccess(ctx, currentAccessToken, a.ID, sess.DeviceID)
	if !reused {
		accessToken, expiresAt, err = s.codec.Issue(a.ID, sess.DeviceID, map[string]string{"role": string(a.Role)})
		if err != nil {
			return nil, err
		}
	}

	newSess, newRefresh, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyRotated) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		AccountID:    a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		DeviceID:     newSess.DeviceID,
	}, nil
}

// Logout revokes the caller's access credential for its remaining lifetime and
// deletes every refresh session the account holds. Logout is account-wide.
func (s *SessionService) Logout(ctx context.Context, accessToken, accountID string) error {
	return s.logout(ctx, accessToken, accountID, accountID, auditdomain.ActionLogout, s.failOpen)
}

// ForceLogout is the admin-initiated variant of Logout. It always fails
// closed: if the revocation store is down the forced logout reports failure
// instead of leaving a live credential behind.
func (s *SessionService) ForceLogout(ctx context.Context, accessToken, accountID, actor string) error {
	return s.logout(ctx, accessToken, accountID, actor, auditdomain.ActionForceLogout, false)
}

func (s *SessionService) logout(ctx context.Context, accessToken, accountID, actor, action string, failOpen bool) error {
	if accessToken != "" {
		// Block the access credential for its remaining natural lifetime.
		if exp, err := s.codec.ExpiryOf(accessToken); err == nil {
			if ttl := exp.Sub(s.nowF()); ttl > 0 {
				if err := s.revocation.Block(ctx, accessToken, ttl); err != nil {
					if !failOpen {
						return fmt.Errorf("revocation store: %w", err)
					}
					log.Printf("auth: revocation block failed, proceeding: %v", err)
				}
			}
		}
	}
	if err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return err
	}
	s.auditLog.LogEvent(ctx, accountID, actor, action, "", "")
	return nil
}

// CheckStatus reports whether the account may authenticate right now, lifting
// an elapsed temporary sanction first.
func (s *SessionService) CheckStatus(ctx context.Context, accountID string) (gate.Decision, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return gate.Decision{}, err
	}
	if a == nil {
		return gate.Decision{}, ErrAccountNotFound
	}
	if _, err := s.reconcile.ReconcileIfExpired(ctx, a); err != nil {
		return gate.Decision{}, err
	}
	return gate.Evaluate(a), nil
}

// reusableAccess reports whether the supplied access token can be returned
// unmodified: verified, bound to the same account and device, and not on the
// denylist.
func (s *SessionService) reusableAccess(ctx context.Context, token, accountID, deviceID string) (string, time.Time, bool) {
	if token == "" {
		return "", time.Time{}, false
	}
	claims, err := s.codec.Verify(token)
	if err != nil || claims.Subject != accountID || claims.DeviceID != deviceID {
		return "", time.Time{}, false
	}
	blocked, err := s.revocation.IsBlocked(ctx, token)
	if err != nil || blocked {
		return "", time.Time{}, false
	}
	return token, claims.ExpiresAt.Time, true
}

// dummyPasswordHash is a bcrypt hash of an unknowable random value, compared
// against when the email does not resolve to an account.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
