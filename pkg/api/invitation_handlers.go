package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
)

// createInvitation invites an email address with a role
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)[rbac.BusinessIDVar]

	var req CreateInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	role, err := business.ParseRole(req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	inv, err := s.invitations.Create(r.Context(), businessID, req.Email, role, middleware.GetAuthContext(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, newInvitationResponse(inv, true))
}

// listInvitations lists pending invitations, newest first
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	pending, err := s.invitations.List(r.Context(), mux.Vars(r)[rbac.BusinessIDVar])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]InvitationResponse, 0, len(pending))
	for _, inv := range pending {
		out = append(out, newInvitationResponse(inv, true))
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"invitations": out,
		"count":       len(out),
	})
}

// revokeInvitation deletes a pending invitation
func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.invitations.Revoke(r.Context(), vars[rbac.BusinessIDVar], vars["token"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// acceptInvitation joins the caller to the invited business
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	inv, err := s.invitations.Accept(r.Context(), mux.Vars(r)["token"], authCtx.UserID, authCtx.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newInvitationResponse(inv, false))
}
