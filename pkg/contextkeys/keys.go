// Package contextkeys holds the request-scoped values shared across
// packages. Keys are unexported and typed, so a value can only be read back
// as the type it was stored with.
//
//	ctx = contextkeys.WithBusinessID(ctx, businessID)
//	id := contextkeys.GetBusinessID(ctx) // "" when unset
//
// Packages that would import each other in a cycle (auth, observability,
// audit) store their values as interface{} and assert on the way out.
package contextkeys

import (
	"context"
	"time"
)

type key[T any] struct{ name string }

func (k key[T]) String() string { return "synergyhub/" + k.name }

func with[T any](ctx context.Context, k key[T], v T) context.Context {
	return context.WithValue(ctx, k, v)
}

func get[T any](ctx context.Context, k key[T]) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func getString(ctx context.Context, k key[string]) string {
	v, _ := get(ctx, k)
	return v
}

var (
	// *auth.AuthContext, set by middleware.AuthMiddleware
	authKey = key[interface{}]{"auth"}
	// caller's role in the routed business, set by rbac.PermissionMiddleware
	roleKey = key[string]{"role"}
	// routed business, set by rbac.PermissionMiddleware
	businessIDKey = key[string]{"business_id"}
	requestIDKey  = key[string]{"request_id"}
	userIDKey     = key[string]{"user_id"}
	// *observability.Logger
	loggerKey = key[interface{}]{"logger"}
	// audit.Logger
	auditLoggerKey = key[interface{}]{"audit_logger"}
	startKey       = key[time.Time]{"request_start"}
)

// WithAuth stores the caller's *auth.AuthContext
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return with(ctx, authKey, authCtx)
}

// GetAuth returns the stored auth context, or nil
func GetAuth(ctx context.Context) interface{} {
	v, _ := get(ctx, authKey)
	return v
}

func WithRole(ctx context.Context, role string) context.Context {
	return with(ctx, roleKey, role)
}

func GetRole(ctx context.Context) string { return getString(ctx, roleKey) }

func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return with(ctx, businessIDKey, businessID)
}

func GetBusinessID(ctx context.Context) string { return getString(ctx, businessIDKey) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string { return getString(ctx, requestIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string { return getString(ctx, userIDKey) }

// WithLogger stores the request's *observability.Logger
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return with(ctx, loggerKey, logger)
}

// GetLogger returns the stored request logger, or nil
func GetLogger(ctx context.Context) interface{} {
	v, _ := get(ctx, loggerKey)
	return v
}

// WithAuditLogger stores the request's audit.Logger
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return with(ctx, auditLoggerKey, logger)
}

// GetAuditLogger returns the stored audit logger, or nil
func GetAuditLogger(ctx context.Context) interface{} {
	v, _ := get(ctx, auditLoggerKey)
	return v
}

func WithRequestStartTime(ctx context.Context, start time.Time) context.Context {
	return with(ctx, startKey, start)
}

func GetRequestStartTime(ctx context.Context) (time.Time, bool) {
	return get(ctx, startKey)
}

// Fields returns the request, user and business IDs set on ctx, keyed the
// way log lines and audit metadata name them. Unset IDs are omitted.
func Fields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{}, 3)
	for name, k := range map[string]key[string]{
		"request_id":  requestIDKey,
		"user_id":     userIDKey,
		"business_id": businessIDKey,
	} {
		if v := getString(ctx, k); v != "" {
			fields[name] = v
		}
	}
	return fields
}
