package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// BusinessIDVar is the mux path variable naming the target business
const BusinessIDVar = "businessId"

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	checker *Checker
	logger  *observability.Logger
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker *Checker, logger *observability.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker: checker,
		logger:  logger,
	}
}

// RequirePermission rejects callers whose role in the business named by the
// path lacks any of required. On success the caller's role is stored in the
// request context.
func (pm *PermissionMiddleware) RequirePermission(required ...Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if !authCtx.IsAuthenticated() {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			businessID := mux.Vars(r)[BusinessIDVar]
			if businessID == "" {
				httputil.WriteBadRequest(w, "business ID required")
				return
			}

			result, err := pm.checker.CheckPermission(r.Context(), businessID, authCtx.UserID, required...)
			if err != nil {
				if errors.Is(err, ErrBusinessNotFound) {
					httputil.WriteNotFoundError(w, "business not found")
					return
				}
				pm.logger.WithError(err).WithFields(map[string]interface{}{
					"business_id": businessID,
					"user_id":     authCtx.UserID,
				}).Error("Permission check failed")
				httputil.WriteInternalError(w, errors.New("permission check failed"))
				return
			}

			if !result.IsMember {
				httputil.WriteForbidden(w, "not a member of this business")
				return
			}
			if !result.Allowed {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			ctx := contextkeys.WithRole(r.Context(), string(result.Role))
			ctx = contextkeys.WithBusinessID(ctx, businessID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFromContext returns the caller role stored by RequirePermission
func RoleFromContext(ctx context.Context) (business.Role, bool) {
	role := business.Role(contextkeys.GetRole(ctx))
	return role, role.IsValid()
}
