package business

import (
	"fmt"
	"strings"
)

// Role is the closed set of membership roles on a business
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleMember     Role = "Member"
	RoleClient     Role = "Client"
)

// Role ceilings per business
const (
	MaxSuperAdmins = 5
	MaxAdmins      = 20
	MaxMembers     = 1000
)

// Unlimited marks a role without a ceiling
const Unlimited = -1

// AllRoles returns every role ordered by privilege, highest first
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleMember, RoleClient}
}

// ParseRole validates a wire value. Matching is exact; "admin" is rejected.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// IsValid reports whether r is one of the four known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleMember, RoleClient:
		return true
	}
	return false
}

// Rank orders roles by privilege. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleClient:
		return 1
	}
	return 0
}

// Outranks reports whether r carries strictly more privilege than other
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// Limit returns the ceiling for r, or Unlimited
func (r Role) Limit() int {
	switch r {
	case RoleSuperAdmin:
		return MaxSuperAdmins
	case RoleAdmin:
		return MaxAdmins
	case RoleMember:
		return MaxMembers
	case RoleClient:
		return Unlimited
	}
	return 0
}

func (r Role) String() string {
	return string(r)
}
