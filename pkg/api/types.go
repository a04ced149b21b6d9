package api

import (
	"time"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

// CreateBusinessRequest is the body of POST /businesses
type CreateBusinessRequest struct {
	Name string `json:"name"`
}

// UpdateBusinessRequest is the body of PATCH /businesses/{businessId}
type UpdateBusinessRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest is the body of POST /businesses/{businessId}/members
type AddMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// UpdateRoleRequest is the body of PATCH .../members/{userId}/role
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// CreateInvitationRequest is the body of POST /businesses/{businessId}/invitations
type CreateInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// BusinessResponse is the wire form of a business
type BusinessResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Owner        string                `json:"owner"`
	Members      []business.Member     `json:"members"`
	MemberCounts business.MemberCounts `json:"memberCounts"`
	Version      int64                 `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	// CallerRole is set on GET /businesses/{businessId}
	CallerRole business.Role `json:"callerRole,omitempty"`
}

func newBusinessResponse(b *business.Business) BusinessResponse {
	return BusinessResponse{
		ID:           b.ID(),
		Name:         b.Name(),
		Owner:        b.Owner(),
		Members:      b.Members(),
		MemberCounts: b.Counts(),
		Version:      b.Version(),
		CreatedAt:    b.CreatedAt(),
		UpdatedAt:    b.UpdatedAt(),
	}
}

// BusinessSummary is a list entry in GET /businesses
type BusinessSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Role        business.Role `json:"role"`
	IsOwner     bool          `json:"isOwner"`
	MemberCount int           `json:"memberCount"`
}

// RoleChangeResponse reports a role update
type RoleChangeResponse struct {
	UserID       string           `json:"userId"`
	PreviousRole business.Role    `json:"previousRole"`
	Role         business.Role    `json:"role"`
	Business     BusinessResponse `json:"business"`
}

// QuotasResponse lists per-role headroom
type QuotasResponse struct {
	BusinessID string           `json:"businessId"`
	Quotas     []business.Quota `json:"quotas"`
}

// InvitationResponse is the wire form of an invitation. The token is only
// included when the invitation is created.
type InvitationResponse struct {
	Token      string        `json:"token,omitempty"`
	BusinessID string        `json:"business"`
	Email      string        `json:"email"`
	Role       business.Role `json:"role"`
	InvitedBy  string        `json:"invitedBy"`
	InvitedAt  time.Time     `json:"invitedAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	AcceptedAt *time.Time    `json:"acceptedAt,omitempty"`
}

func newInvitationResponse(inv *invitations.Invitation, withToken bool) InvitationResponse {
	resp := InvitationResponse{
		BusinessID: inv.BusinessID,
		Email:      inv.Email,
		Role:       inv.Role,
		InvitedBy:  inv.InvitedBy,
		InvitedAt:  inv.InvitedAt,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
	}
	if withToken {
		resp.Token = inv.Token
	}
	return resp
}

// CurrentUserResponse is the body of GET /users/me
type CurrentUserResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name,omitempty"`
	Email           string             `json:"email,omitempty"`
	Businesses      []users.Membership `json:"businesses"`
	DefaultBusiness string             `json:"defaultBusiness,omitempty"`
}
