package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
)

// mayManage reports whether actorID may assign, change or remove the target
// role in b. The owner may also manage SuperAdmins.
func mayManage(b *business.Business, actorID string, target business.Role) bool {
	actor, ok := b.RoleOf(actorID)
	if !ok {
		return false
	}
	if rbac.CanManageRole(actor, target) {
		return true
	}
	return target == business.RoleSuperAdmin && b.IsOwner(actorID)
}

// listMembers lists members joined with their profiles
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]
	members, err := s.membership.ListMembers(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// addMember adds a user with a role
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]
	actorID := middleware.GetAuthContext(r).UserID

	var req AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if !httputil.RequireNonEmpty(w, req.UserID, "userId") {
		return
	}
	role, err := business.ParseRole(req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	b, err := s.membership.Get(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !mayManage(b, actorID, role) {
		writeServiceError(w, r, errForbiddenRole)
		return
	}

	b, err = s.membership.AddMember(r.Context(), businessID, req.UserID, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, newBusinessResponse(b))
}

// removeMember removes a user from the business
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	businessID, userID := vars[rbac.BusinessIDVar], vars["userId"]
	actorID := middleware.GetAuthContext(r).UserID

	b, err := s.membership.Get(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	target, ok := b.RoleOf(userID)
	if !ok {
		writeServiceError(w, r, business.ErrMemberNotFound)
		return
	}
	if !mayManage(b, actorID, target) {
		writeServiceError(w, r, errForbiddenRole)
		return
	}

	if _, err := s.membership.RemoveMember(r.Context(), businessID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// updateMemberRole moves a member to another role. The caller must be able
// to manage both the current and the new role.
func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	businessID, userID := vars[rbac.BusinessIDVar], vars["userId"]
	actorID := middleware.GetAuthContext(r).UserID

	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := business.ParseRole(req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	b, err := s.membership.Get(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	current, ok := b.RoleOf(userID)
	if !ok {
		writeServiceError(w, r, business.ErrMemberNotFound)
		return
	}
	if !mayManage(b, actorID, current) || !mayManage(b, actorID, role) {
		writeServiceError(w, r, errForbiddenRole)
		return
	}

	b, previous, err := s.membership.UpdateMemberRole(r.Context(), businessID, userID, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, RoleChangeResponse{
		UserID:       userID,
		PreviousRole: previous,
		Role:         role,
		Business:     newBusinessResponse(b),
	})
}

// getQuotas reports per-role counts and ceilings
func (s *Server) getQuotas(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]
	quotas, err := s.membership.Quotas(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, QuotasResponse{BusinessID: businessID, Quotas: quotas})
}
