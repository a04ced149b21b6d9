// Package business implements the membership and quota engine for a SynergyHub business.
//
// # Overview
//
// A Business owns an ordered list of members and a per-role headcount that is
// kept private to the aggregate. The only mutation paths are AddMember,
// RemoveMember and UpdateMemberRole; each one keeps the members list and the
// counters in agreement and enforces the fixed role ceilings.
//
// # Role Ceilings
//
//   - SuperAdmin: 5
//   - Admin: 20
//   - Member: 1000
//   - Client: unlimited
//
// At least one SuperAdmin must remain on a business at all times. The owner
// is a regular member holding the SuperAdmin role and is counted once.
//
// # Usage Example
//
//	b := business.New(id, "Acme", ownerID, time.Now())
//	if err := b.AddMember("u-42", business.RoleAdmin, time.Now()); err != nil {
//		if errors.Is(err, business.ErrQuotaExceeded) {
//			// ceiling reached
//		}
//	}
//	doc := b.Document() // persist
//
// Loading from storage re-validates the counters:
//
//	b, err := business.FromDocument(doc)
//
// # Related Packages
//
//   - pkg/membership: application service that persists mutations
//   - pkg/rbac: permission table and role management policy
package business
