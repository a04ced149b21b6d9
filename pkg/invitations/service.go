package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
)

// Members is the part of the membership service invitations rely on
type Members interface {
	Get(ctx context.Context, businessID string) (*business.Business, error)
	AddMember(ctx context.Context, businessID, userID string, role business.Role) (*business.Business, error)
}

// Options configures a Service. Store and Members are required.
type Options struct {
	Store    docstore.Collection[*Invitation]
	Members  Members
	Audit    audit.Logger
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Logger   *observability.Logger
	TTL      time.Duration
}

// Service manages invitations
type Service struct {
	store    docstore.Collection[*Invitation]
	members  Members
	audit    audit.Logger
	notifier notify.Notifier
	metrics  *observability.Metrics
	logger   *observability.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates an invitation service
func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		members:  opts.Members,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		ttl:      opts.TTL,
		now:      time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.audit == nil {
		s.audit = audit.NopLogger{}
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return s
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// Create invites email to businessID with role. The inviter must be allowed
// to manage role and the role must have headroom now; the quota is checked
// again on acceptance. A pending invitation for the same email is replaced.
func (s *Service) Create(ctx context.Context, businessID, email string, role business.Role, inviterID string) (*Invitation, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", business.ErrInvalidRole, role)
	}

	b, err := s.members.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	inviterRole, ok := b.RoleOf(inviterID)
	if !ok {
		return nil, ErrForbidden
	}
	if !rbac.CanManageRole(inviterRole, role) && !(b.IsOwner(inviterID) && role == business.RoleSuperAdmin) {
		return nil, ErrForbidden
	}
	if !b.CanAddMemberWithRole(role) {
		s.metrics.RecordQuotaRejection(role.String())
		return nil, &business.QuotaExceededError{Role: role, Current: b.Counts().Of(role), Limit: role.Limit()}
	}

	existing, err := s.store.List(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	for _, inv := range existing {
		if inv.Email == email && !inv.Accepted() {
			if err := s.store.Delete(ctx, inv.Token); err != nil && !docstore.IsNotFound(err) {
				return nil, fmt.Errorf("failed to replace invitation: %w", err)
			}
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.now().UTC()
	inv := &Invitation{
		Token:      token,
		BusinessID: businessID,
		Email:      email,
		Role:       role,
		InvitedBy:  inviterID,
		InvitedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.store.Insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	s.metrics.RecordInvitation("created")

	event := audit.NewEvent(ctx, audit.EventTypeInvitationCreate, businessID)
	event.ResourceType = audit.ResourceTypeInvitation
	event.ResourceID = email
	event.Message = fmt.Sprintf("Invited %s as %s", email, role)
	s.record(ctx, event)

	if s.notifier != nil {
		err := s.notifier.Notify(ctx, notify.Notification{
			Type:       notify.TypeInvitationCreated,
			BusinessID: businessID,
			ActorID:    inviterID,
			Message:    fmt.Sprintf("%s was invited to %s as %s", email, b.Name(), role),
			Data:       map[string]string{"email": email, "role": string(role)},
		})
		if err != nil {
			s.logger.WithError(err).WithField("business_id", businessID).Warn("Failed to send invitation notification")
		}
	}
	return inv, nil
}

// Get loads an invitation by token
func (s *Service) Get(ctx context.Context, token string) (*Invitation, error) {
	inv, err := s.store.Get(ctx, token)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// Accept adds userID to the invited business. The invitation is claimed
// first so it can be used once; a failed membership change releases it.
// email is the caller's verified address and may be empty.
func (s *Service) Accept(ctx context.Context, token, userID, email string) (*Invitation, error) {
	var claimed *Invitation
	err := docstore.RetryOnConflict(ctx, 0, func(ctx context.Context, _ int) error {
		inv, err := s.Get(ctx, token)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		switch {
		case inv.Accepted():
			return ErrAlreadyAccepted
		case inv.Expired(now):
			return ErrExpired
		case email != "" && !strings.EqualFold(email, inv.Email):
			return ErrEmailMismatch
		}
		inv.AcceptedAt = &now
		inv.AcceptedBy = userID
		if err := s.store.Replace(ctx, inv); err != nil {
			return err
		}
		claimed = inv
		return nil
	})
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if _, err := s.members.AddMember(ctx, claimed.BusinessID, userID, claimed.Role); err != nil {
		s.release(ctx, token)
		return nil, err
	}
	s.metrics.RecordInvitation("accepted")

	event := audit.NewEvent(ctx, audit.EventTypeInvitationAccept, claimed.BusinessID)
	event.ActorID = userID
	event.ResourceType = audit.ResourceTypeInvitation
	event.ResourceID = claimed.Email
	event.Message = fmt.Sprintf("%s joined as %s", userID, claimed.Role)
	s.record(ctx, event)
	return claimed, nil
}

// release clears a claim so the invitation can be retried
func (s *Service) release(ctx context.Context, token string) {
	err := docstore.RetryOnConflict(ctx, 0, func(ctx context.Context, _ int) error {
		inv, err := s.store.Get(ctx, token)
		if err != nil {
			return err
		}
		inv.AcceptedAt = nil
		inv.AcceptedBy = ""
		return s.store.Replace(ctx, inv)
	})
	if err != nil && !docstore.IsNotFound(err) {
		s.logger.WithError(err).Error("Failed to release invitation claim")
	}
}

// Revoke deletes a pending invitation of businessID
func (s *Service) Revoke(ctx context.Context, businessID, token string) error {
	inv, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if inv.BusinessID != businessID {
		return ErrNotFound
	}
	if inv.Accepted() {
		return ErrAlreadyAccepted
	}
	if err := s.store.Delete(ctx, token); err != nil {
		if docstore.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	s.metrics.RecordInvitation("revoked")

	event := audit.NewEvent(ctx, audit.EventTypeInvitationRevoke, businessID)
	event.ResourceType = audit.ResourceTypeInvitation
	event.ResourceID = inv.Email
	s.record(ctx, event)
	return nil
}

// List returns the pending invitations of businessID, newest first
func (s *Service) List(ctx context.Context, businessID string) ([]*Invitation, error) {
	all, err := s.store.List(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	now := s.now()
	pending := make([]*Invitation, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Pending(now) {
			pending = append(pending, all[i])
		}
	}
	return pending, nil
}

// CleanupExpired deletes every invitation that expired without being accepted
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	all, err := s.store.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list invitations: %w", err)
	}
	now := s.now()
	removed := 0
	var errs []error
	for _, inv := range all {
		if inv.Accepted() || !inv.Expired(now) {
			continue
		}
		if err := s.store.Delete(ctx, inv.Token); err != nil && !docstore.IsNotFound(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Removed expired invitations")
	}
	for i := 0; i < removed; i++ {
		s.metrics.RecordInvitation("expired")
	}
	return removed, errors.Join(errs...)
}

// DeleteBusiness removes every invitation of businessID
func (s *Service) DeleteBusiness(ctx context.Context, businessID string) error {
	if _, err := s.store.DeleteScope(ctx, businessID); err != nil {
		return fmt.Errorf("failed to delete invitations: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event_type", string(event.EventType)).Warn("Failed to record audit event")
	}
}
