// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: Bearer JWT authentication
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, logger, false).WithProvisioner(userService)
//	router.Use(authMW.Handler)
//	// Validates the token, stores *auth.AuthContext and the user ID in the request context
//
// RateLimit: fixed-window limits over a Limiter backend
//
//	limiter := middleware.NewRedisLimiter(redisClient, "synergyhub:ratelimit") // or NewLocalLimiter()
//	router.Use(middleware.NewRateLimit(limiter, middleware.DefaultPolicies(), logger).Handler)
//
// # Rate Limiting
//
// Anonymous callers are keyed by client IP (100 req/min), signed-in callers by
// user ID (1000 req/min). Mutating requests by a user also draw on a separate
// write budget (120 req/min). Denials answer 429 with Retry-After and
// X-RateLimit-* headers.
//
// # Related Packages
//
//   - pkg/auth: Token validation
//   - pkg/rbac: Permission checking
package middleware
