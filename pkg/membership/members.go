package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/notify"
)

// MemberView is a member entry joined with the user's profile
type MemberView struct {
	UserID  string        `json:"userId"`
	Name    string        `json:"name,omitempty"`
	Email   string        `json:"email,omitempty"`
	Role    business.Role `json:"role"`
	AddedAt time.Time     `json:"addedAt"`
	IsOwner bool          `json:"isOwner"`
}

// AddMember adds userID to the business with role
func (s *Service) AddMember(ctx context.Context, businessID, userID string, role business.Role) (b *business.Business, err error) {
	ctx, span := s.startSpan(ctx, "add_member", businessID)
	defer func() { s.finish(span, "add_member", err) }()

	b, err = s.mutate(ctx, "add_member", businessID, func(b *business.Business, now time.Time) (bool, error) {
		return true, b.AddMember(userID, role, now)
	})
	if err != nil {
		s.auditRejection(ctx, businessID, userID, err)
		return nil, err
	}
	s.invalidate(businessID, userID)

	fields := map[string]interface{}{"business_id": businessID, "user_id": userID}
	s.dependent(ctx, "user_businesses", fields, func(ctx context.Context) error {
		return s.users.AddBusiness(ctx, userID, businessID, role)
	})

	event := audit.NewEvent(ctx, audit.EventTypeMemberAdd, businessID)
	event.ResourceType = audit.ResourceTypeMember
	event.ResourceID = userID
	event.Message = fmt.Sprintf("Added %s as %s", userID, role)
	event.Changes = &audit.ChangeDetails{After: map[string]interface{}{"role": string(role)}}
	s.emit(ctx, event, notify.Notification{
		Type:       notify.TypeMemberAdded,
		BusinessID: businessID,
		UserID:     userID,
		ActorID:    contextkeys.GetUserID(ctx),
		Message:    fmt.Sprintf("You were added to %s as %s", b.Name(), role),
		Data:       map[string]string{"role": string(role)},
	})

	s.log(ctx).WithFields(fields).WithField("role", string(role)).Info("Member added")
	return b, nil
}

// RemoveMember removes userID from the business. When the owner leaves,
// ownership passes to the earliest remaining SuperAdmin.
func (s *Service) RemoveMember(ctx context.Context, businessID, userID string) (b *business.Business, err error) {
	ctx, span := s.startSpan(ctx, "remove_member", businessID)
	defer func() { s.finish(span, "remove_member", err) }()

	var removed business.Member
	b, err = s.mutate(ctx, "remove_member", businessID, func(b *business.Business, now time.Time) (bool, error) {
		var err error
		removed, err = b.RemoveMember(userID, now)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(businessID, userID)

	fields := map[string]interface{}{"business_id": businessID, "user_id": userID}
	s.dependent(ctx, "user_businesses", fields, func(ctx context.Context) error {
		return s.users.RemoveBusiness(ctx, userID, businessID)
	})
	if s.workspace != nil {
		s.dependent(ctx, "workspace", fields, func(ctx context.Context) error {
			res, err := s.workspace.DetachUser(ctx, businessID, userID)
			if err == nil && res.Projects+res.Tasks > 0 {
				s.log(ctx).WithFields(fields).WithFields(map[string]interface{}{
					"projects": res.Projects,
					"tasks":    res.Tasks,
				}).Info("Detached member from workspace records")
			}
			return err
		})
	}

	event := audit.NewEvent(ctx, audit.EventTypeMemberRemove, businessID)
	event.ResourceType = audit.ResourceTypeMember
	event.ResourceID = userID
	event.Message = fmt.Sprintf("Removed %s", userID)
	event.Changes = &audit.ChangeDetails{Before: map[string]interface{}{"role": string(removed.Role)}}
	event.Metadata["owner"] = b.Owner()
	s.emit(ctx, event, notify.Notification{
		Type:       notify.TypeMemberRemoved,
		BusinessID: businessID,
		UserID:     userID,
		ActorID:    contextkeys.GetUserID(ctx),
		Message:    fmt.Sprintf("You were removed from %s", b.Name()),
	})

	s.log(ctx).WithFields(fields).Info("Member removed")
	return b, nil
}

// UpdateMemberRole moves userID to role and returns the updated business
// and the role held before. Assigning the current role changes nothing.
func (s *Service) UpdateMemberRole(ctx context.Context, businessID, userID string, role business.Role) (b *business.Business, previous business.Role, err error) {
	ctx, span := s.startSpan(ctx, "update_role", businessID)
	defer func() { s.finish(span, "update_role", err) }()

	b, err = s.mutate(ctx, "update_role", businessID, func(b *business.Business, now time.Time) (bool, error) {
		var err error
		previous, err = b.UpdateMemberRole(userID, role, now)
		return err == nil && previous != role, err
	})
	if err != nil {
		s.auditRejection(ctx, businessID, userID, err)
		return nil, "", err
	}
	if previous == role {
		return b, previous, nil
	}
	s.invalidate(businessID, userID)

	fields := map[string]interface{}{"business_id": businessID, "user_id": userID}
	s.dependent(ctx, "user_businesses", fields, func(ctx context.Context) error {
		return s.users.SetRole(ctx, userID, businessID, role)
	})

	event := audit.NewEvent(ctx, audit.EventTypeMemberRoleChange, businessID)
	event.ResourceType = audit.ResourceTypeMember
	event.ResourceID = userID
	event.Message = fmt.Sprintf("Changed role of %s from %s to %s", userID, previous, role)
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"role": string(previous)},
		After:  map[string]interface{}{"role": string(role)},
	}
	s.emit(ctx, event, notify.Notification{
		Type:       notify.TypeMemberRoleChanged,
		BusinessID: businessID,
		UserID:     userID,
		ActorID:    contextkeys.GetUserID(ctx),
		Message:    fmt.Sprintf("Your role in %s is now %s", b.Name(), role),
		Data:       map[string]string{"previous": string(previous), "role": string(role)},
	})

	s.log(ctx).WithFields(fields).WithFields(map[string]interface{}{
		"previous": string(previous),
		"role":     string(role),
	}).Info("Member role changed")
	return b, previous, nil
}

// ListMembers returns the members of a business with their profiles
func (s *Service) ListMembers(ctx context.Context, businessID string) ([]MemberView, error) {
	b, err := s.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	members := b.Members()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	profiles, err := s.users.Profiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load member profiles: %w", err)
	}

	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		p := profiles[m.UserID]
		out = append(out, MemberView{
			UserID:  m.UserID,
			Name:    p.Name,
			Email:   p.Email,
			Role:    m.Role,
			AddedAt: m.AddedAt,
			IsOwner: b.IsOwner(m.UserID),
		})
	}
	return out, nil
}

// Quotas reports per-role counts and ceilings
func (s *Service) Quotas(ctx context.Context, businessID string) ([]business.Quota, error) {
	b, err := s.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return b.Quotas(), nil
}
