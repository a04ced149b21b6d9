package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/auth"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// Service manages user profiles
type Service struct {
	users  docstore.Collection[*User]
	logger *observability.Logger
	now    func() time.Time
}

// NewService creates a user service over the given collection
func NewService(users docstore.Collection[*User], logger *observability.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// Get loads a profile
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// EnsureUser creates the caller's profile on first sight and keeps name and
// email in step with the token claims afterwards.
func (s *Service) EnsureUser(ctx context.Context, authCtx *auth.AuthContext) error {
	if !authCtx.IsAuthenticated() {
		return fmt.Errorf("missing caller identity")
	}
	return s.mutate(ctx, authCtx.UserID, func(u *User, now time.Time) bool {
		changed := false
		if authCtx.Name != "" && u.Name != authCtx.Name {
			u.Name = authCtx.Name
			changed = true
		}
		if authCtx.Email != "" && u.Email != authCtx.Email {
			u.Email = authCtx.Email
			changed = true
		}
		if changed {
			u.UpdatedAt = now.UTC()
		}
		return changed
	})
}

// AddBusiness records that userID joined businessID with role
func (s *Service) AddBusiness(ctx context.Context, userID, businessID string, role business.Role) error {
	return s.mutate(ctx, userID, func(u *User, now time.Time) bool {
		return u.AddBusiness(businessID, role, now)
	})
}

// SetRole mirrors a role change into the user's business list
func (s *Service) SetRole(ctx context.Context, userID, businessID string, role business.Role) error {
	return s.mutate(ctx, userID, func(u *User, now time.Time) bool {
		if _, ok := u.Membership(businessID); !ok {
			return u.AddBusiness(businessID, role, now)
		}
		return u.SetRole(businessID, role, now)
	})
}

// RemoveBusiness drops businessID from the user's business list. A missing
// profile is not an error.
func (s *Service) RemoveBusiness(ctx context.Context, userID, businessID string) error {
	err := docstore.RetryOnConflict(ctx, 0, func(ctx context.Context, _ int) error {
		u, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}
		if !u.RemoveBusiness(businessID, s.now()) {
			return nil
		}
		return s.users.Replace(ctx, u)
	})
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove business %s from user %s: %w", businessID, userID, err)
	}
	return nil
}

// Profiles resolves public profiles for ids. Users without a stored profile
// are returned with only their id.
func (s *Service) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	for _, id := range ids {
		u, err := s.users.Get(ctx, id)
		if err != nil {
			if docstore.IsNotFound(err) {
				out[id] = Profile{ID: id}
				continue
			}
			return nil, fmt.Errorf("failed to get user %s: %w", id, err)
		}
		out[id] = u.Profile()
	}
	return out, nil
}

// mutate applies fn to the stored profile, creating a bare one when it does
// not exist yet, and saves when fn reports a change.
func (s *Service) mutate(ctx context.Context, userID string, fn func(u *User, now time.Time) bool) error {
	err := docstore.RetryOnConflict(ctx, 0, func(ctx context.Context, _ int) error {
		now := s.now()
		u, err := s.users.Get(ctx, userID)
		if docstore.IsNotFound(err) {
			u = &User{ID: userID, Businesses: []Membership{}, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
			fn(u, now)
			err = s.users.Insert(ctx, u)
			if errors.Is(err, docstore.ErrDuplicate) {
				// lost the creation race, retry as an update
				return docstore.ErrConflict
			}
			if err == nil {
				s.logger.WithField("user_id", userID).Info("Provisioned user profile")
			}
			return err
		}
		if err != nil {
			return err
		}
		if !fn(u, now) {
			return nil
		}
		return s.users.Replace(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return nil
}
