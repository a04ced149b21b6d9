package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/synergyhub/pkg/auth"
	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/observability"
)

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization header format")
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.AuthContext, error)
}

// Provisioner creates or refreshes the profile of an authenticated caller
type Provisioner interface {
	EnsureUser(ctx context.Context, authCtx *auth.AuthContext) error
}

// AuthMiddleware authenticates bearer tokens and puts the caller on the
// request context. In optional mode requests without credentials pass
// through anonymously; bad credentials are always rejected.
type AuthMiddleware struct {
	tokens   TokenValidator
	logger   *observability.Logger
	optional bool

	provisioner Provisioner
	// callers whose profile matched their claims recently
	provisioned *lru.LRU[string, struct{}]
}

// NewAuthMiddleware creates the middleware
func NewAuthMiddleware(tokens TokenValidator, logger *observability.Logger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger, optional: optional}
}

// WithProvisioner runs p after authentication. A caller is provisioned at
// most once per five minutes unless their claims change.
func (m *AuthMiddleware) WithProvisioner(p Provisioner) *AuthMiddleware {
	m.provisioner = p
	m.provisioned = lru.NewLRU[string, struct{}](10000, nil, 5*time.Minute)
	return m
}

// Handler wraps next with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		switch {
		case errors.Is(err, errNoCredentials) && m.optional:
			next.ServeHTTP(w, r)
			return
		case err != nil:
			httputil.WriteUnauthorized(w, err.Error())
			return
		}

		caller, err := m.tokens.ValidateToken(token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUserID(contextkeys.WithAuth(r.Context(), caller), caller.UserID)
		m.provision(ctx, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// provision keeps the caller's profile in step with their token. Failures
// are logged only: the request can be served from the claims.
func (m *AuthMiddleware) provision(ctx context.Context, caller *auth.AuthContext) {
	if m.provisioner == nil {
		return
	}
	key := caller.UserID + "\x00" + caller.Email + "\x00" + caller.Name
	if m.provisioned.Contains(key) {
		return
	}
	if err := m.provisioner.EnsureUser(ctx, caller); err != nil {
		m.logger.WithError(err).WithField("user_id", caller.UserID).Warn("Failed to provision user profile")
		return
	}
	m.provisioned.Add(key, struct{}{})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadScheme
	}
	return token, nil
}

// GetAuthContext returns the caller of r, or nil when anonymous
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return AuthFromContext(r.Context())
}

// AuthFromContext returns the caller stored on ctx, or nil
func AuthFromContext(ctx context.Context) *auth.AuthContext {
	caller, _ := contextkeys.GetAuth(ctx).(*auth.AuthContext)
	return caller
}

// RequireAuth rejects anonymous requests. It follows an optional
// AuthMiddleware on routes that need a caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthContext(r).IsAuthenticated() {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
