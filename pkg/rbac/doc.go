// Package rbac maps business roles to permissions and guards HTTP routes.
//
// # Overview
//
// Roles come from the business aggregate. Each role grants a fixed set of
// resource:action permissions (DefaultRolePermissions). A caller's role is
// resolved per business through a Checker, which keeps an expiring LRU cache
// in front of a RoleSource.
//
//	checker := rbac.NewChecker(rbac.NewStoreSource(businesses), 10000, time.Minute)
//	pm := rbac.NewPermissionMiddleware(checker, logger)
//
//	members := router.PathPrefix("/businesses/{businessId}/members").Subrouter()
//	members.Use(pm.RequirePermission(rbac.PermMembersManage))
//
// # Role Escalation
//
// CanManageRole gates who may assign or remove which role. SuperAdmin
// manages Admin, Member and Client. Admin manages Member and Client.
// SuperAdmin itself is managed by nobody at this level; the API layer lets
// the business owner grant and revoke it.
//
// # Cache Invalidation
//
// Membership writes call Invalidate or InvalidateBusiness so stale roles
// are not served until the TTL elapses.
package rbac
