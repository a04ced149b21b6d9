package business

import (
	"fmt"
	"time"
)

// Member is one entry in a business's members list
type Member struct {
	UserID  string    `json:"user" bson:"user"`
	Role    Role      `json:"role" bson:"role"`
	AddedAt time.Time `json:"addedAt" bson:"addedAt"`
}

// MemberCounts is a read-only snapshot of the per-role headcount
type MemberCounts struct {
	SuperAdmin int `json:"superAdmin" bson:"superAdmin"`
	Admin      int `json:"admin" bson:"admin"`
	Member     int `json:"member" bson:"member"`
	Client     int `json:"client" bson:"client"`
}

// Of returns the count held for role
func (c MemberCounts) Of(role Role) int {
	switch role {
	case RoleSuperAdmin:
		return c.SuperAdmin
	case RoleAdmin:
		return c.Admin
	case RoleMember:
		return c.Member
	case RoleClient:
		return c.Client
	}
	return 0
}

// Total returns the number of members across all roles
func (c MemberCounts) Total() int {
	return c.SuperAdmin + c.Admin + c.Member + c.Client
}

// counter is the private tally. Only the mutation methods on Business touch it.
type counter struct {
	byRole map[Role]int
}

func newCounter() counter {
	return counter{byRole: make(map[Role]int, 4)}
}

func (c counter) get(role Role) int { return c.byRole[role] }
func (c counter) inc(role Role) { c.byRole[role]++ }
func (c counter) dec(role Role) { c.byRole[role]-- }

func (c counter) snapshot() MemberCounts {
	return MemberCounts{
		SuperAdmin: c.byRole[RoleSuperAdmin],
		Admin:      c.byRole[RoleAdmin],
		Member:     c.byRole[RoleMember],
		Client:     c.byRole[RoleClient],
	}
}

// Business is the membership aggregate
type Business struct {
	id        string
	name      string
	owner     string
	members   []Member
	counts    counter
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// New creates a business whose only member is the owner, as SuperAdmin
func New(id, name, ownerID string, now time.Time) *Business {
	b := &Business{
		id:        id,
		name:      name,
		owner:     ownerID,
		counts:    newCounter(),
		createdAt: now.UTC(),
		updatedAt: now.UTC(),
	}
	b.members = append(b.members, Member{UserID: ownerID, Role: RoleSuperAdmin, AddedAt: now.UTC()})
	b.counts.inc(RoleSuperAdmin)
	return b
}

func (b *Business) ID() string { return b.id }
func (b *Business) Name() string { return b.name }
func (b *Business) Owner() string { return b.owner }
func (b *Business) Version() int64 { return b.version }
func (b *Business) CreatedAt() time.Time { return b.createdAt }
func (b *Business) UpdatedAt() time.Time { return b.updatedAt }

// Counts returns a snapshot of the per-role headcount
func (b *Business) Counts() MemberCounts {
	return b.counts.snapshot()
}

// Members returns a copy of the members list in insertion order
func (b *Business) Members() []Member {
	out := make([]Member, len(b.members))
	copy(out, b.members)
	return out
}

// Member looks up a single member
func (b *Business) Member(userID string) (Member, bool) {
	if i := b.indexOf(userID); i >= 0 {
		return b.members[i], true
	}
	return Member{}, false
}

// RoleOf returns the role userID holds, or false when they are not a member
func (b *Business) RoleOf(userID string) (Role, bool) {
	m, ok := b.Member(userID)
	return m.Role, ok
}

// IsOwner reports whether userID owns the business
func (b *Business) IsOwner(userID string) bool {
	return userID != "" && b.owner == userID
}

// Rename changes the display name. It reports false when name is already
// the current name.
func (b *Business) Rename(name string, now time.Time) bool {
	if name == b.name {
		return false
	}
	b.name = name
	b.updatedAt = now.UTC()
	return true
}

// CanAddMemberWithRole reports whether one more member of role fits under its ceiling
func (b *Business) CanAddMemberWithRole(role Role) bool {
	if !role.IsValid() {
		return false
	}
	limit := role.Limit()
	if limit == Unlimited {
		return true
	}
	return b.counts.get(role) < limit
}

func (b *Business) checkQuota(role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if !b.CanAddMemberWithRole(role) {
		return &QuotaExceededError{Role: role, Current: b.counts.get(role), Limit: role.Limit()}
	}
	return nil
}

// AddMember appends userID with role
func (b *Business) AddMember(userID string, role Role, now time.Time) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if b.indexOf(userID) >= 0 {
		return ErrDuplicateMember
	}
	if err := b.checkQuota(role); err != nil {
		return err
	}

	b.members = append(b.members, Member{UserID: userID, Role: role, AddedAt: now.UTC()})
	b.counts.inc(role)
	b.updatedAt = now.UTC()
	return nil
}

// RemoveMember drops userID and returns the removed entry
func (b *Business) RemoveMember(userID string, now time.Time) (Member, error) {
	i := b.indexOf(userID)
	if i < 0 {
		return Member{}, ErrMemberNotFound
	}
	removed := b.members[i]
	if removed.Role == RoleSuperAdmin && b.counts.get(RoleSuperAdmin) <= 1 {
		return Member{}, ErrLastSuperAdmin
	}

	b.members = append(b.members[:i], b.members[i+1:]...)
	b.counts.dec(removed.Role)
	if removed.UserID == b.owner {
		b.transferOwnership()
	}
	b.updatedAt = now.UTC()
	return removed, nil
}

// UpdateMemberRole moves userID to newRole and returns the role they held before.
// Assigning the role a member already holds succeeds without changes.
func (b *Business) UpdateMemberRole(userID string, newRole Role, now time.Time) (Role, error) {
	if !newRole.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}
	i := b.indexOf(userID)
	if i < 0 {
		return "", ErrMemberNotFound
	}
	oldRole := b.members[i].Role
	if oldRole == newRole {
		return oldRole, nil
	}
	if oldRole == RoleSuperAdmin && b.counts.get(RoleSuperAdmin) <= 1 {
		return "", ErrLastSuperAdmin
	}
	// the vacated slot is not credited back before the check
	if err := b.checkQuota(newRole); err != nil {
		return "", err
	}

	b.counts.dec(oldRole)
	b.counts.inc(newRole)
	b.members[i].Role = newRole
	if userID == b.owner && newRole != RoleSuperAdmin {
		b.transferOwnership()
	}
	b.updatedAt = now.UTC()
	return oldRole, nil
}

// transferOwnership hands the owner slot to the earliest remaining SuperAdmin
func (b *Business) transferOwnership() {
	for _, m := range b.members {
		if m.Role == RoleSuperAdmin {
			b.owner = m.UserID
			return
		}
	}
}

func (b *Business) indexOf(userID string) int {
	for i, m := range b.members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// Quota describes one role's headroom
type Quota struct {
	Role      Role `json:"role"`
	Current   int  `json:"current"`
	Limit     int  `json:"limit"`
	Unlimited bool `json:"unlimited"`
	Available int  `json:"available"`
}

// Quotas reports current counts against the fixed ceilings
func (b *Business) Quotas() []Quota {
	out := make([]Quota, 0, 4)
	for _, role := range AllRoles() {
		q := Quota{Role: role, Current: b.counts.get(role), Limit: role.Limit()}
		if q.Limit == Unlimited {
			q.Unlimited = true
			q.Available = Unlimited
		} else {
			q.Available = max(q.Limit-q.Current, 0)
		}
		out = append(out, q)
	}
	return out
}
