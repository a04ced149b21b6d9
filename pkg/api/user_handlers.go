package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

// getCurrentUser returns the caller's profile. A caller whose profile has
// not been stored yet is described from the token claims.
func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	resp := CurrentUserResponse{
		ID:         authCtx.UserID,
		Name:       authCtx.Name,
		Email:      authCtx.Email,
		Businesses: []users.Membership{},
	}

	u, err := s.users.Get(r.Context(), authCtx.UserID)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
	case err != nil:
		writeServiceError(w, r, err)
		return
	default:
		if u.Name != "" {
			resp.Name = u.Name
		}
		if u.Email != "" {
			resp.Email = u.Email
		}
		if u.Businesses != nil {
			resp.Businesses = u.Businesses
		}
		resp.DefaultBusiness = u.DefaultBusiness
	}
	httputil.WriteSuccess(w, resp)
}
