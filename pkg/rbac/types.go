package rbac

import (
	"slices"

	"github.com/platinummonkey/synergyhub/pkg/business"
)

// Permission is a resource:action string
type Permission string

const (
	PermBusinessRead      Permission = "business:read"
	PermBusinessUpdate    Permission = "business:update"
	PermBusinessDelete    Permission = "business:delete"
	PermMembersRead       Permission = "members:read"
	PermMembersManage     Permission = "members:manage"
	PermInvitationsManage Permission = "invitations:manage"
	PermProjectsRead      Permission = "projects:read"
	PermProjectsWrite     Permission = "projects:write"
	PermTasksRead         Permission = "tasks:read"
	PermTasksWrite        Permission = "tasks:write"
	PermClientsRead       Permission = "clients:read"
	PermClientsWrite      Permission = "clients:write"
	PermAuditRead         Permission = "audit:read"
)

// DefaultRolePermissions is the fixed role to permission table
var DefaultRolePermissions = map[business.Role][]Permission{
	business.RoleSuperAdmin: {
		PermBusinessRead, PermBusinessUpdate, PermBusinessDelete,
		PermMembersRead, PermMembersManage, PermInvitationsManage,
		PermProjectsRead, PermProjectsWrite,
		PermTasksRead, PermTasksWrite,
		PermClientsRead, PermClientsWrite,
		PermAuditRead,
	},
	business.RoleAdmin: {
		PermBusinessRead, PermBusinessUpdate,
		PermMembersRead, PermMembersManage, PermInvitationsManage,
		PermProjectsRead, PermProjectsWrite,
		PermTasksRead, PermTasksWrite,
		PermClientsRead, PermClientsWrite,
		PermAuditRead,
	},
	business.RoleMember: {
		PermBusinessRead,
		PermMembersRead,
		PermProjectsRead,
		PermTasksRead, PermTasksWrite,
		PermClientsRead,
	},
	business.RoleClient: {
		PermBusinessRead,
		PermProjectsRead,
		PermTasksRead,
	},
}

// PermissionsFor returns a copy of the permissions granted to role
func PermissionsFor(role business.Role) []Permission {
	return slices.Clone(DefaultRolePermissions[role])
}

// HasPermissions reports whether role grants every required permission.
// Unknown roles are granted nothing.
func HasPermissions(role business.Role, required ...Permission) bool {
	granted, ok := DefaultRolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range required {
		if !slices.Contains(granted, p) {
			return false
		}
	}
	return true
}

// CanManageRole reports whether an actor holding actor may assign, change
// or remove members holding target. SuperAdmin manages Admin, Member and
// Client; Admin manages Member and Client; nobody manages SuperAdmin.
func CanManageRole(actor, target business.Role) bool {
	return target.IsValid() && HasPermissions(actor, PermMembersManage) && actor.Outranks(target)
}

// PermissionCheckResult describes the outcome of a permission check
type PermissionCheckResult struct {
	Allowed  bool          `json:"allowed"`
	Role     business.Role `json:"role,omitempty"`
	IsMember bool          `json:"isMember"`
	Missing  []Permission  `json:"missing,omitempty"`
}
