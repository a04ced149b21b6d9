package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
)

// ErrBusinessNotFound is returned when role resolution targets a missing business
var ErrBusinessNotFound = errors.New("business not found")

// RoleSource resolves the role a user holds in a business.
// ok is false when the user is not a member.
type RoleSource interface {
	RoleOf(ctx context.Context, businessID, userID string) (role business.Role, ok bool, err error)
}

// StoreSource resolves roles straight from the business collection
type StoreSource struct {
	businesses docstore.Collection[*business.Document]
}

// NewStoreSource creates a RoleSource over the business collection
func NewStoreSource(businesses docstore.Collection[*business.Document]) *StoreSource {
	return &StoreSource{businesses: businesses}
}

// RoleOf loads the business document and looks up userID
func (s *StoreSource) RoleOf(ctx context.Context, businessID, userID string) (business.Role, bool, error) {
	doc, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return "", false, ErrBusinessNotFound
		}
		return "", false, fmt.Errorf("failed to load business: %w", err)
	}
	for _, m := range doc.Members {
		if m.UserID == userID {
			return m.Role, true, nil
		}
	}
	return "", false, nil
}

type cachedRole struct {
	role business.Role
	ok   bool
}

// Checker resolves roles through an expiring LRU cache and evaluates permissions
type Checker struct {
	source RoleSource
	cache  *lru.LRU[string, cachedRole]
	hits   atomic.Int64
	misses atomic.Int64

	// gen is bumped by every invalidation; a lookup that overlapped one is
	// returned but not cached
	mu  sync.Mutex
	gen uint64
}

// NewChecker creates a checker. A non-positive size disables caching.
func NewChecker(source RoleSource, size int, ttl time.Duration) *Checker {
	c := &Checker{source: source}
	if size > 0 {
		c.cache = lru.NewLRU[string, cachedRole](size, nil, ttl)
	}
	return c
}

func cacheKey(businessID, userID string) string {
	return businessID + "/" + userID
}

// Role returns the role userID holds in businessID
func (c *Checker) Role(ctx context.Context, businessID, userID string) (business.Role, bool, error) {
	key := cacheKey(businessID, userID)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			return cached.role, cached.ok, nil
		}
	}
	c.misses.Add(1)

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	role, ok, err := c.source.RoleOf(ctx, businessID, userID)
	if err != nil {
		return "", false, err
	}
	if c.cache != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Add(key, cachedRole{role: role, ok: ok})
		}
		c.mu.Unlock()
	}
	return role, ok, nil
}

// CheckPermission evaluates required against the caller's role. Non-members
// are denied; a missing business is returned as ErrBusinessNotFound.
func (c *Checker) CheckPermission(ctx context.Context, businessID, userID string, required ...Permission) (*PermissionCheckResult, error) {
	role, ok, err := c.Role(ctx, businessID, userID)
	if err != nil {
		return nil, err
	}

	result := &PermissionCheckResult{Role: role, IsMember: ok}
	if !ok {
		result.Missing = required
		return result, nil
	}
	for _, p := range required {
		if !HasPermissions(role, p) {
			result.Missing = append(result.Missing, p)
		}
	}
	result.Allowed = len(result.Missing) == 0
	return result, nil
}

// Invalidate drops the cached role for one user in one business
func (c *Checker) Invalidate(businessID, userID string) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Remove(cacheKey(businessID, userID))
}

// InvalidateBusiness drops every cached role for businessID
func (c *Checker) InvalidateBusiness(businessID string) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	prefix := businessID + "/"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// CacheStats returns cache hit and miss counts
func (c *Checker) CacheStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
