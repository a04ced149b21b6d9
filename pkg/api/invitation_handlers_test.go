package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/business"
)

func invitationsPath(id string) string {
	return "/api/v1/businesses/" + id + "/invitations"
}

func (e *testEnv) invite(t *testing.T, actorID, businessID, email string, role business.Role) InvitationResponse {
	t.Helper()
	w := e.do(t, actorID, http.MethodPost, invitationsPath(businessID), CreateInvitationRequest{Email: email, Role: string(role)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv InvitationResponse
	decode(t, w, &inv)
	return inv
}

func TestInvitationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")

	inv := env.invite(t, "owner", id, "Alice@Example.com", business.RoleMember)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, "alice@example.com", inv.Email)
	assert.Equal(t, "owner", inv.InvitedBy)
	assert.True(t, inv.ExpiresAt.After(inv.InvitedAt))

	w := env.do(t, "owner", http.MethodGet, invitationsPath(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Invitations []InvitationResponse `json:"invitations"`
		Count       int                  `json:"count"`
	}
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, inv.Token, list.Invitations[0].Token)

	w = env.do(t, "alice", http.MethodPost, "/api/v1/invitations/"+inv.Token+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var accepted InvitationResponse
	decode(t, w, &accepted)
	assert.Empty(t, accepted.Token)
	require.NotNil(t, accepted.AcceptedAt)

	b, err := env.membership.Get(t.Context(), id)
	require.NoError(t, err)
	role, ok := b.RoleOf("alice")
	require.True(t, ok)
	assert.Equal(t, business.RoleMember, role)

	w = env.do(t, "alice", http.MethodPost, "/api/v1/invitations/"+inv.Token+"/accept", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "owner", http.MethodGet, invitationsPath(id), nil)
	decode(t, w, &list)
	assert.Zero(t, list.Count)
}

func TestCreateInvitation_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")
	env.addMember(t, "owner", id, "admin", business.RoleAdmin)
	env.addMember(t, "owner", id, "member", business.RoleMember)

	tests := []struct {
		name   string
		actor  string
		body   CreateInvitationRequest
		status int
	}{
		{"invalid role", "owner", CreateInvitationRequest{Email: "a@example.com", Role: "Boss"}, http.StatusBadRequest},
		{"invalid email", "owner", CreateInvitationRequest{Email: "not-an-email", Role: "Member"}, http.StatusBadRequest},
		{"missing email", "owner", CreateInvitationRequest{Role: "Member"}, http.StatusBadRequest},
		{"admin cannot invite admin", "admin", CreateInvitationRequest{Email: "a@example.com", Role: "Admin"}, http.StatusForbidden},
		{"member lacks permission", "member", CreateInvitationRequest{Email: "a@example.com", Role: "Client"}, http.StatusForbidden},
		{"owner invites super admin", "owner", CreateInvitationRequest{Email: "sa@example.com", Role: "SuperAdmin"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.actor, http.MethodPost, invitationsPath(id), tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAcceptInvitation_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")
	inv := env.invite(t, "owner", id, "alice@example.com", business.RoleMember)

	t.Run("unknown token", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/api/v1/invitations/nope/accept", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("different email", func(t *testing.T) {
		w := env.do(t, "mallory", http.MethodPost, "/api/v1/invitations/"+inv.Token+"/accept", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("existing member", func(t *testing.T) {
		dup := env.invite(t, "owner", id, "owner@example.com", business.RoleMember)
		w := env.do(t, "owner", http.MethodPost, "/api/v1/invitations/"+dup.Token+"/accept", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRevokeInvitation(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")
	other := env.createBusiness(t, "other")
	inv := env.invite(t, "owner", id, "alice@example.com", business.RoleClient)

	w := env.do(t, "other", http.MethodDelete, invitationsPath(other)+"/"+inv.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "token belongs to another business")

	w = env.do(t, "owner", http.MethodDelete, invitationsPath(id)+"/"+inv.Token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "alice", http.MethodPost, "/api/v1/invitations/"+inv.Token+"/accept", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
