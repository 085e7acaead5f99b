package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Typed verification failures. Verify and ExpiryOf return exactly one of these
// for any bad input; adversarial tokens never panic.
var (
	// ErrTokenMalformed is returned when a token cannot be parsed or its claims are wrong.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenExpired is returned when a token's exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature is returned when a token's signature does not verify.
	ErrTokenSignature = errors.New("invalid token signature")
)

// AccessClaims holds JWT claims for the short-lived access credential.
// Subject is the account id; DeviceID binds the credential to one device.
type AccessClaims struct {
	jwt.RegisteredClaims
	DeviceID string            `json:"device_id"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// TokenCodec issues and verifies signed access credentials using RS256 or ES256.
// Stateless: validity is signature + expiry; revocation is the caller's concern.
type TokenCodec struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	nowF       func() time.Time
}

// NewTokenCodec returns a TokenCodec that signs with the given private key
// (RSA or ECDSA). issuer and audience are set on claims and checked on Verify.
func NewTokenCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL returns the configured access credential lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// Issue signs a short-lived access credential bound to (accountID, deviceID).
// extra claims are carried opaquely (e.g. role for admin authorization).
// Returns the token string and its expiration time. No side effects beyond signing.
func (c *TokenCodec) Issue(accountID, deviceID string, extra map[string]string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := c.nowF()
	expiresAt = now.Add(c.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeviceID: deviceID,
		Extra:    extra,
	}
	var method jwt.SigningMethod
	switch c.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrTokenMalformed
	}
	token, err = jwt.NewWithClaims(method, claims).SignedString(c.privateKey)
	return token, expiresAt, err
}

// Verify parses and validates an access credential (signature, exp, iss, aud)
// and returns its claims. Fails with ErrTokenExpired, ErrTokenSignature, or
// ErrTokenMalformed.
func (c *TokenCodec) Verify(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, c.keyFunc)
	if err != nil {
		return nil, classifyParseError(err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if err := c.checkIssuerAudience(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiryOf returns the expiry of a credential without requiring it to be
// unexpired, so callers can compute remaining TTL for revocation bookkeeping.
// The signature is still verified; forged or unparseable input fails the same
// way as Verify.
func (c *TokenCodec) ExpiryOf(tokenString string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &AccessClaims{}, c.keyFunc)
	if err != nil {
		return time.Time{}, classifyParseError(err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenMalformed
	}
	if err := c.checkIssuerAudience(claims); err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return c.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return c.publicKey, nil
	}
	return nil, ErrTokenMalformed
}

func (c *TokenCodec) checkIssuerAudience(claims *AccessClaims) error {
	if claims.Issuer != c.issuer {
		return ErrTokenMalformed
	}
	for _, a := range claims.Audience {
		if a == c.audience {
			return nil
		}
	}
	return ErrTokenMalformed
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
