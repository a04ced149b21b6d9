// Package auth issues and validates the bearer tokens that identify callers.
//
// # Overview
//
// Tokens are HS256 JWTs. The subject claim carries the user ID; email and
// name ride along so a user profile can be provisioned on first use.
//
//	tm, err := auth.NewTokenManager(secret, "synergyhub", 24*time.Hour)
//	token, expiresAt, err := tm.IssueToken("user-1", "alice@example.com", "Alice")
//
//	authCtx, err := tm.ValidateToken(token)
//	if errors.Is(err, auth.ErrTokenExpired) {
//		// ask the client to sign in again
//	}
//
// # Related Packages
//
//   - pkg/middleware: extracts the bearer token and stores the AuthContext
//   - pkg/users: provisions profiles from AuthContext claims
package auth
