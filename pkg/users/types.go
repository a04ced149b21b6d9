package users

import (
	"errors"
	"slices"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
)

// ErrUserNotFound is returned when no profile exists for a user id
var ErrUserNotFound = errors.New("user not found")

// Membership is a user's view of one business they belong to
type Membership struct {
	BusinessID  string            `json:"business" bson:"business"`
	Role        business.Role     `json:"role" bson:"role"`
	Permissions []rbac.Permission `json:"permissions" bson:"permissions"`
	JoinedAt    time.Time         `json:"joinedAt" bson:"joinedAt"`
}

// User is a stored profile
type User struct {
	ID              string       `json:"id" bson:"_id"`
	Name            string       `json:"name" bson:"name"`
	Email           string       `json:"email" bson:"email"`
	Businesses      []Membership `json:"businesses" bson:"businesses"`
	DefaultBusiness string       `json:"defaultBusiness,omitempty" bson:"defaultBusiness,omitempty"`
	Version         int64        `json:"version" bson:"version"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" bson:"updatedAt"`
}

func (u *User) GetID() string { return u.ID }
func (u *User) GetVersion() int64 { return u.Version }
func (u *User) SetVersion(v int64) { u.Version = v }
func (u *User) GetScope() string { return "" }

func (u *User) indexOf(businessID string) int {
	return slices.IndexFunc(u.Businesses, func(m Membership) bool {
		return m.BusinessID == businessID
	})
}

// Membership returns the entry for businessID
func (u *User) Membership(businessID string) (Membership, bool) {
	if i := u.indexOf(businessID); i >= 0 {
		return u.Businesses[i], true
	}
	return Membership{}, false
}

// AddBusiness records membership in businessID, or refreshes the role when
// already present. The first business becomes the default. Reports whether
// anything changed.
func (u *User) AddBusiness(businessID string, role business.Role, now time.Time) bool {
	if i := u.indexOf(businessID); i >= 0 {
		return u.SetRole(businessID, role, now)
	}
	u.Businesses = append(u.Businesses, Membership{
		BusinessID:  businessID,
		Role:        role,
		Permissions: rbac.PermissionsFor(role),
		JoinedAt:    now.UTC(),
	})
	if u.DefaultBusiness == "" {
		u.DefaultBusiness = businessID
	}
	u.UpdatedAt = now.UTC()
	return true
}

// SetRole updates the role and permission set held in businessID
func (u *User) SetRole(businessID string, role business.Role, now time.Time) bool {
	i := u.indexOf(businessID)
	if i < 0 || u.Businesses[i].Role == role {
		return false
	}
	u.Businesses[i].Role = role
	u.Businesses[i].Permissions = rbac.PermissionsFor(role)
	u.UpdatedAt = now.UTC()
	return true
}

// RemoveBusiness drops businessID. When it was the default, the earliest
// remaining business takes its place.
func (u *User) RemoveBusiness(businessID string, now time.Time) bool {
	i := u.indexOf(businessID)
	if i < 0 {
		return false
	}
	u.Businesses = slices.Delete(u.Businesses, i, i+1)
	if u.DefaultBusiness == businessID {
		u.DefaultBusiness = ""
		if len(u.Businesses) > 0 {
			u.DefaultBusiness = u.Businesses[0].BusinessID
		}
	}
	u.UpdatedAt = now.UTC()
	return true
}

// Profile is the public subset of a user shown next to membership entries
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Profile returns the public subset of u
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}
