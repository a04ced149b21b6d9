package invitations

import (
	"errors"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/business"
)

var (
	ErrNotFound        = errors.New("invitation not found")
	ErrExpired         = errors.New("invitation expired")
	ErrAlreadyAccepted = errors.New("invitation already accepted")
	ErrEmailMismatch   = errors.New("invitation was sent to a different email address")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrForbidden       = errors.New("inviter may not grant this role")
)

// DefaultTTL is how long an invitation stays valid
const DefaultTTL = 7 * 24 * time.Hour

// Invitation asks an email address to join a business with a role
type Invitation struct {
	Token      string        `json:"token" bson:"_id"`
	BusinessID string        `json:"business" bson:"business"`
	Email      string        `json:"email" bson:"email"`
	Role       business.Role `json:"role" bson:"role"`
	InvitedBy  string        `json:"invitedBy" bson:"invitedBy"`
	InvitedAt  time.Time     `json:"invitedAt" bson:"invitedAt"`
	ExpiresAt  time.Time     `json:"expiresAt" bson:"expiresAt"`
	AcceptedAt *time.Time    `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	AcceptedBy string        `json:"acceptedBy,omitempty" bson:"acceptedBy,omitempty"`
	Version    int64         `json:"version" bson:"version"`
	CreatedAt  time.Time     `json:"createdAt" bson:"createdAt"`
}

func (i *Invitation) GetID() string { return i.Token }
func (i *Invitation) GetVersion() int64 { return i.Version }
func (i *Invitation) SetVersion(v int64) { i.Version = v }
func (i *Invitation) GetScope() string { return i.BusinessID }

// Accepted reports whether the invitation has been used
func (i *Invitation) Accepted() bool {
	return i.AcceptedAt != nil
}

// Expired reports whether the invitation lapsed before now
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Pending reports whether the invitation can still be accepted
func (i *Invitation) Pending(now time.Time) bool {
	return !i.Accepted() && !i.Expired(now)
}
