// Package middleware carries request identity and client metadata through the
// HTTP stack.
package middleware

import "context"

type contextKey struct{ name string }

var (
	accountIDKey   = contextKey{"account_id"}
	deviceIDKey    = contextKey{"device_id"}
	roleKey        = contextKey{"role"}
	accessTokenKey = contextKey{"access_token"}
	clientIPKey    = contextKey{"client_ip"}
)

// WithIdentity returns a context with account_id, device_id, and role set.
// Handlers read these via GetAccountID, GetDeviceID, GetRole.
func WithIdentity(ctx context.Context, accountID, deviceID, role string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	ctx = context.WithValue(ctx, deviceIDKey, deviceID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// GetAccountID returns the account_id from context and true if set.
func GetAccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountIDKey).(string)
	return v, ok
}

// GetDeviceID returns the device_id from context and true if set.
func GetDeviceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(deviceIDKey).(string)
	return v, ok
}

// GetRole returns the role from context and true if set.
func GetRole(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok
}

// WithAccessToken returns a context carrying the raw bearer token, so logout
// can denylist the exact credential that authenticated the request.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

// GetAccessToken returns the raw bearer token from context and true if set.
func GetAccessToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accessTokenKey).(string)
	return v, ok
}

// WithClientIP returns a context with the client IP set.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
