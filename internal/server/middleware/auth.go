package middleware

import (
	"log"
	"net/http"
	"strings"

	"course-marketplace/backend/internal/revocation"
	"course-marketplace/backend/internal/security"
	"course-marketplace/backend/internal/server/httpx"
)

const bearerPrefix = "bearer "

// Authenticate validates the Bearer access token, rejects denylisted tokens,
// and sets account_id, device_id, and role in the request context.
//
// failOpen controls behavior when the revocation store cannot answer: true
// lets ordinary requests through on a verified signature, false rejects them.
// Either way the token itself must verify.
func Authenticate(codec *security.TokenCodec, revocationStore revocation.Store, failOpen bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing or invalid authorization")
				return
			}
			claims, err := codec.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing or invalid authorization")
				return
			}
			blocked, err := revocationStore.IsBlocked(r.Context(), token)
			if err != nil {
				if !failOpen {
					httpx.WriteError(w, http.StatusServiceUnavailable, "REVOCATION_UNAVAILABLE", "Cannot verify credential revocation")
					return
				}
				log.Printf("middleware: revocation check failed, proceeding: %v", err)
			} else if blocked {
				httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Credential has been revoked")
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.DeviceID, claims.Extra["role"])
			ctx = WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the request, or "" if missing
// or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
