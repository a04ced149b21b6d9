// Package membership applies business membership changes and keeps the
// records that mirror them in step.
//
// # Write path
//
// Every mutation loads the business document, applies the change through
// the business aggregate and writes it back with a version check. A
// version conflict reloads and retries, up to MaxAttempts, so two
// concurrent additions near a role ceiling cannot both land.
//
// Once the business write succeeds the service updates dependent records:
// user profiles and, on removal, project teams and task assignees. These
// updates are best effort. A failure is logged and counted and the
// business change stands. Audit events and notifications are sent in the
// background through an async.Tracker.
//
//	svc := membership.NewService(membership.Options{
//		Businesses: businesses,
//		Users:      userService,
//		Workspace:  workspaceService,
//		Roles:      checker,
//		Audit:      auditStore,
//		Notifier:   notifier,
//	})
//	b, err := svc.AddMember(ctx, businessID, userID, business.RoleAdmin)
//
// # Related Packages
//
//   - pkg/business: the aggregate and its quota rules
//   - pkg/invitations: invitation acceptance calls AddMember
package membership
