package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/synergyhub/pkg/async"
	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

const maxNameLength = 100

func newBusinessID() string {
	return uuid.NewString()
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// CreateBusiness creates a business owned by ownerID, who becomes its first
// SuperAdmin
func (s *Service) CreateBusiness(ctx context.Context, name, ownerID string) (b *business.Business, err error) {
	ctx, span := s.startSpan(ctx, "create_business", "")
	defer func() { s.finish(span, "create_business", err) }()

	if name, err = validName(name); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner is required")
	}

	b = business.New(s.newID(), name, ownerID, s.now())
	doc := b.Document()
	if err := s.businesses.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create business: %w", err)
	}
	if b, err = business.FromDocument(doc); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"business_id": b.ID(), "user_id": ownerID}
	s.dependent(ctx, "user_businesses", fields, func(ctx context.Context) error {
		return s.users.AddBusiness(ctx, ownerID, b.ID(), business.RoleSuperAdmin)
	})

	event := audit.NewEvent(ctx, audit.EventTypeBusinessCreate, b.ID())
	event.ResourceType = audit.ResourceTypeBusiness
	event.ResourceID = b.ID()
	event.Message = fmt.Sprintf("Created business %q", name)
	s.emit(ctx, event)

	s.log(ctx).WithFields(fields).Info("Business created")
	return b, nil
}

// RenameBusiness changes the display name of a business. Renaming to the
// current name writes nothing and records no event.
func (s *Service) RenameBusiness(ctx context.Context, businessID, name string) (b *business.Business, err error) {
	ctx, span := s.startSpan(ctx, "rename_business", businessID)
	defer func() { s.finish(span, "rename_business", err) }()

	if name, err = validName(name); err != nil {
		return nil, err
	}

	var previous string
	changed := false
	b, err = s.mutate(ctx, "rename_business", businessID, func(b *business.Business, now time.Time) (bool, error) {
		previous = b.Name()
		changed = b.Rename(name, now)
		return changed, nil
	})
	if err != nil || !changed {
		return b, err
	}

	event := audit.NewEvent(ctx, audit.EventTypeBusinessUpdate, businessID)
	event.ResourceType = audit.ResourceTypeBusiness
	event.ResourceID = businessID
	event.Message = fmt.Sprintf("Renamed business %q to %q", previous, name)
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"name": previous},
		After:  map[string]interface{}{"name": name},
	}
	s.emit(ctx, event)

	s.log(ctx).WithField("business_id", businessID).Info("Business renamed")
	return b, nil
}

// ListBusinessesForUser returns the businesses userID belongs to, in the
// order they joined. Entries whose business is gone or no longer lists the
// user are skipped.
func (s *Service) ListBusinessesForUser(ctx context.Context, userID string) ([]*business.Business, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, users.ErrUserNotFound) {
		return []*business.Business{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]*business.Business, 0, len(u.Businesses))
	for _, m := range u.Businesses {
		b, err := s.Get(ctx, m.BusinessID)
		if errors.Is(err, ErrBusinessNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, ok := b.Member(userID); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// DeleteBusiness removes every record owned by the business, then the
// business itself, then detaches it from its members' profiles
func (s *Service) DeleteBusiness(ctx context.Context, businessID string) (err error) {
	ctx, span := s.startSpan(ctx, "delete_business", businessID)
	defer func() { s.finish(span, "delete_business", err) }()

	b, err := s.Get(ctx, businessID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.cascades {
		g.Go(func() error {
			if err := c.Delete(gctx, businessID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", c.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.businesses.Delete(ctx, businessID); err != nil {
		if docstore.IsNotFound(err) {
			return ErrBusinessNotFound
		}
		return fmt.Errorf("failed to delete business: %w", err)
	}
	if s.roles != nil {
		s.roles.InvalidateBusiness(businessID)
	}

	members := b.Members()
	errs := async.Batch(ctx, s.logger, members, 4, "detach business", s.taskTimeout,
		func(ctx context.Context, m business.Member) error {
			return s.users.RemoveBusiness(ctx, m.UserID, businessID)
		})
	for range errs {
		s.metrics.RecordDependentFailure("user_businesses")
	}
	if len(errs) > 0 {
		s.log(ctx).WithField("business_id", businessID).WithError(errors.Join(errs...)).
			Warn("Failed to detach business from some member profiles")
	}

	event := audit.NewEvent(ctx, audit.EventTypeBusinessDelete, businessID)
	event.ResourceType = audit.ResourceTypeBusiness
	event.ResourceID = businessID
	event.Message = fmt.Sprintf("Deleted business %q with %d members", b.Name(), len(members))
	notes := make([]notify.Notification, 0, len(members))
	for _, m := range members {
		notes = append(notes, notify.Notification{
			Type:    notify.TypeBusinessDeleted,
			UserID:  m.UserID,
			ActorID: contextkeys.GetUserID(ctx),
			Message: fmt.Sprintf("%s was deleted", b.Name()),
			Data:    map[string]string{"business": businessID},
		})
	}
	s.emit(ctx, event, notes...)

	s.log(ctx).WithField("business_id", businessID).Info("Business deleted")
	return nil
}
