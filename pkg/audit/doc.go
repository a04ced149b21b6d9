// Package audit records the membership trail of every business.
//
// # Overview
//
// Each event is scoped to one business and stored next to it, so deleting a
// business deletes its trail. Writes are fire-and-forget from the membership
// service: a failed write is logged and never undoes the change it describes.
//
// # Event Types
//
// Business: create, delete
// Member: add, remove, role_change
// Invitation: create, accept, revoke
// Authorization: access_denied (recorded by Middleware for every 403)
//
// # Usage Example
//
//	event := audit.NewEvent(ctx, audit.EventTypeMemberRoleChange, businessID)
//	event.ResourceType = audit.ResourceTypeMember
//	event.ResourceID = userID
//	event.Changes = &audit.ChangeDetails{
//		Before: map[string]interface{}{"role": "Member"},
//		After:  map[string]interface{}{"role": "Admin"},
//	}
//	err := logger.Log(ctx, event)
//
// Search a business trail:
//
//	events, err := store.Search(ctx, audit.SearchFilter{
//		BusinessID: businessID,
//		EventTypes: []audit.EventType{audit.EventTypeMemberAdd},
//		Limit:      50,
//	})
//
// # Sinks
//
// DocStore keeps events in a docstore collection and serves queries.
// FileLogger appends JSON lines to daily segments that also roll on size.
// Tee puts a FileLogger behind the DocStore; file failures are reported,
// not returned.
//
// # Retention Policy
//
// Default: 90 days, enforced by the janitor through Store.Cleanup.
// Export: JSON, CSV (with before/after role columns) and NDJSON
package audit
