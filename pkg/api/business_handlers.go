package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
)

// createBusiness creates a business owned by the caller
func (s *Server) createBusiness(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateBusinessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	b, err := s.membership.CreateBusiness(r.Context(), req.Name, authCtx.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/businesses/"+b.ID())
	httputil.WriteCreated(w, newBusinessResponse(b))
}

// listBusinesses lists the businesses the caller belongs to
func (s *Server) listBusinesses(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := s.membership.ListBusinessesForUser(r.Context(), authCtx.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]BusinessSummary, 0, len(list))
	for _, b := range list {
		role, ok := b.RoleOf(authCtx.UserID)
		if !ok {
			continue
		}
		out = append(out, BusinessSummary{
			ID:          b.ID(),
			Name:        b.Name(),
			Role:        role,
			IsOwner:     b.IsOwner(authCtx.UserID),
			MemberCount: b.Counts().Total(),
		})
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"businesses": out,
		"count":      len(out),
	})
}

// getBusiness returns one business along with the caller's role in it
func (s *Server) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := s.membership.Get(r.Context(), mux.Vars(r)[rbac.BusinessIDVar])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := newBusinessResponse(b)
	resp.CallerRole, _ = rbac.RoleFromContext(r.Context())
	httputil.WriteSuccess(w, resp)
}

// renameBusiness changes the business display name
func (s *Server) renameBusiness(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]

	var req UpdateBusinessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if _, err := s.verifyPermission(r, businessID, rbac.PermBusinessUpdate); err != nil {
		writeServiceError(w, r, err)
		return
	}

	b, err := s.membership.RenameBusiness(r.Context(), businessID, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newBusinessResponse(b))
}

// deleteBusiness deletes a business and everything it owns
func (s *Server) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]
	if _, err := s.verifyPermission(r, businessID, rbac.PermBusinessDelete); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.membership.DeleteBusiness(r.Context(), businessID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// verifyPermission checks the caller against a freshly loaded business.
// The permission middleware answers from a role cache that another replica
// may not have invalidated yet; destructive handlers confirm here.
func (s *Server) verifyPermission(r *http.Request, businessID string, required rbac.Permission) (*business.Business, error) {
	b, err := s.membership.Get(r.Context(), businessID)
	if err != nil {
		return nil, err
	}
	role, ok := b.RoleOf(middleware.GetAuthContext(r).UserID)
	if !ok || !rbac.HasPermissions(role, required) {
		return nil, errForbidden
	}
	return b, nil
}
