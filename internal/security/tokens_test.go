package security

import (
	"strings"
	"testing"
	"time"
)

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	c, err := NewTestTokenCodec(15 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, exp, err := c.Issue("acc-1", "dev-1", map[string]string{"role": "student"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := c.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "acc-1" || claims.DeviceID != "dev-1" {
		t.Errorf("claims: got subject=%q device=%q", claims.Subject, claims.DeviceID)
	}
	if claims.Extra["role"] != "student" {
		t.Errorf("extra claims: got %v", claims.Extra)
	}
}

func TestTokenCodec_VerifyMalformed(t *testing.T) {
	c, err := NewTestTokenCodec(15 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	for _, bad := range []string{"", "not-a-token", "a.b.c", strings.Repeat("x", 4096)} {
		if _, err := c.Verify(bad); err != ErrTokenMalformed {
			t.Errorf("Verify(%q): want ErrTokenMalformed, got %v", bad, err)
		}
	}
}

func TestTokenCodec_VerifyExpired(t *testing.T) {
	c, err := NewTestTokenCodec(time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	c.nowF = func() time.Time { return time.Now().UTC().Add(-2 * time.Minute) }
	token, _, err := c.Issue("acc-1", "dev-1", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c.nowF = func() time.Time { return time.Now().UTC() }
	if _, err := c.Verify(token); err != ErrTokenExpired {
		t.Errorf("Verify expired: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodec_VerifyForged(t *testing.T) {
	c, err := NewTestTokenCodec(15 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, _, err := c.Issue("acc-1", "dev-1", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Flip a character in the signature segment.
	i := strings.LastIndex(token, ".") + 1
	sig := []byte(token[i:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	forged := token[:i] + string(sig)
	if _, err := c.Verify(forged); err != ErrTokenSignature {
		t.Errorf("Verify forged: want ErrTokenSignature, got %v", err)
	}
}

func TestTokenCodec_ExpiryOf(t *testing.T) {
	c, err := NewTestTokenCodec(time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, exp, err := c.Issue("acc-1", "dev-1", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := c.ExpiryOf(token)
	if err != nil {
		t.Fatalf("ExpiryOf: %v", err)
	}
	if got.Unix() != exp.Unix() {
		t.Errorf("ExpiryOf: got %v, want %v", got, exp)
	}

	// Still readable after expiry so logout can compute remaining TTL (zero here).
	c.nowF = func() time.Time { return time.Now().UTC().Add(-2 * time.Minute) }
	expired, _, err := c.Issue("acc-1", "dev-1", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.ExpiryOf(expired); err != nil {
		t.Errorf("ExpiryOf expired: %v", err)
	}

	if _, err := c.ExpiryOf("garbage"); err != ErrTokenMalformed {
		t.Errorf("ExpiryOf garbage: want ErrTokenMalformed, got %v", err)
	}
}

func TestTokenCodec_IssuerAudienceChecked(t *testing.T) {
	c, err := NewTestTokenCodec(time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	other := NewTokenCodec(c.privateKey, c.publicKey, "other-issuer", "other-audience", time.Minute)
	token, _, err := other.Issue("acc-1", "dev-1", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(token); err != ErrTokenMalformed {
		t.Errorf("Verify wrong issuer: want ErrTokenMalformed, got %v", err)
	}
}
