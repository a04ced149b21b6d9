// Package api provides the HTTP REST API for SynergyHub business membership.
//
// # Overview
//
// The API is built on gorilla/mux. Every route lives under /api/v1 and
// requires a bearer token; business routes are additionally gated by the
// caller's role through rbac.PermissionMiddleware.
//
//	POST   /api/v1/businesses
//	GET    /api/v1/businesses
//	GET    /api/v1/businesses/{businessId}
//	PATCH  /api/v1/businesses/{businessId}
//	DELETE /api/v1/businesses/{businessId}
//	GET    /api/v1/businesses/{businessId}/members
//	POST   /api/v1/businesses/{businessId}/members
//	DELETE /api/v1/businesses/{businessId}/members/{userId}
//	PATCH  /api/v1/businesses/{businessId}/members/{userId}/role
//	GET    /api/v1/businesses/{businessId}/quotas
//	POST   /api/v1/businesses/{businessId}/invitations
//	GET    /api/v1/businesses/{businessId}/invitations
//	DELETE /api/v1/businesses/{businessId}/invitations/{token}
//	POST   /api/v1/invitations/{token}/accept
//	GET    /api/v1/businesses/{businessId}/audit
//	GET    /api/v1/users/me
//
// # Role Management
//
// Adding, removing or re-roling a member needs members:manage and the
// ability to manage the roles involved: SuperAdmins manage Admins, Members
// and Clients, Admins manage Members and Clients, and only the owner
// manages other SuperAdmins.
//
// # Errors
//
// Errors are JSON objects with an "error" field. Quota rejections answer
// 409 with the role and counts:
//
//	{"error": "role quota exceeded", "role": "Admin", "current": 20, "limit": 20}
//
// Other mappings: duplicate member and last SuperAdmin 409, unknown member
// or business 404, invalid role 400, insufficient role 403, expired
// invitation 410, and 503 when concurrent modification retries run out.
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		Membership:  membershipService,
//		Invitations: invitationService,
//		Users:       userService,
//		Auth:        middleware.NewAuthMiddleware(tokens, logger, false),
//		Permissions: rbac.NewPermissionMiddleware(checker, logger),
//		Logger:      logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
