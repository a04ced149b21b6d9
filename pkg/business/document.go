package business

import (
	"fmt"
	"time"
)

// Document is the persisted form of a Business
type Document struct {
	ID           string       `json:"id" bson:"_id"`
	Name         string       `json:"name" bson:"name"`
	Owner        string       `json:"owner" bson:"owner"`
	Members      []Member     `json:"members" bson:"members"`
	MemberCounts MemberCounts `json:"memberCounts" bson:"memberCounts"`
	Version      int64        `json:"version" bson:"version"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt" bson:"updatedAt"`
}

func (d *Document) GetID() string { return d.ID }
func (d *Document) GetVersion() int64 { return d.Version }
func (d *Document) SetVersion(v int64) { d.Version = v }
func (d *Document) GetScope() string { return "" }

// Document snapshots the aggregate for storage
func (b *Business) Document() *Document {
	return &Document{
		ID:           b.id,
		Name:         b.name,
		Owner:        b.owner,
		Members:      b.Members(),
		MemberCounts: b.counts.snapshot(),
		Version:      b.version,
		CreatedAt:    b.createdAt,
		UpdatedAt:    b.updatedAt,
	}
}

// FromDocument rebuilds the aggregate, rejecting documents whose counters,
// roles or owner disagree with the members list.
func FromDocument(d *Document) (*Business, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInconsistentDocument)
	}
	b := &Business{
		id:        d.ID,
		name:      d.Name,
		owner:     d.Owner,
		counts:    newCounter(),
		version:   d.Version,
		createdAt: d.CreatedAt,
		updatedAt: d.UpdatedAt,
	}

	seen := make(map[string]struct{}, len(d.Members))
	for _, m := range d.Members {
		if !m.Role.IsValid() {
			return nil, fmt.Errorf("%w: member %s has role %q", ErrInconsistentDocument, m.UserID, m.Role)
		}
		if _, dup := seen[m.UserID]; dup {
			return nil, fmt.Errorf("%w: member %s listed twice", ErrInconsistentDocument, m.UserID)
		}
		seen[m.UserID] = struct{}{}
		b.members = append(b.members, m)
		b.counts.inc(m.Role)
	}

	if got := b.counts.snapshot(); got != d.MemberCounts {
		return nil, fmt.Errorf("%w: memberCounts %+v, members imply %+v", ErrInconsistentDocument, d.MemberCounts, got)
	}
	if b.counts.get(RoleSuperAdmin) < 1 {
		return nil, fmt.Errorf("%w: no SuperAdmin", ErrInconsistentDocument)
	}
	if role, ok := b.RoleOf(d.Owner); !ok || role != RoleSuperAdmin {
		return nil, fmt.Errorf("%w: owner %s is not a SuperAdmin member", ErrInconsistentDocument, d.Owner)
	}
	return b, nil
}
