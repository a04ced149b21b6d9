package membership

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/async"
	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/users"
	"github.com/platinummonkey/synergyhub/pkg/workspace"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) types() []notify.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Type, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Type)
	}
	return out
}

type recordingCache struct {
	mu         sync.Mutex
	members    []string
	businesses []string
}

func (r *recordingCache) Invalidate(businessID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, businessID+"/"+userID)
}

func (r *recordingCache) InvalidateBusiness(businessID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.businesses = append(r.businesses, businessID)
}

// brokenDirectory fails every write
type brokenDirectory struct {
	UserDirectory
}

func (brokenDirectory) AddBusiness(ctx context.Context, userID, businessID string, role business.Role) error {
	return errors.New("users store unavailable")
}

func (brokenDirectory) RemoveBusiness(ctx context.Context, userID, businessID string) error {
	return errors.New("users store unavailable")
}

// conflictingStore fails the first n Replace calls with ErrConflict
type conflictingStore struct {
	docstore.Collection[*business.Document]
	remaining atomic.Int32
}

func (c *conflictingStore) Replace(ctx context.Context, doc *business.Document) error {
	if c.remaining.Add(-1) >= 0 {
		return docstore.ErrConflict
	}
	return c.Collection.Replace(ctx, doc)
}

type fixture struct {
	svc        *Service
	businesses *docstore.MemoryCollection[*business.Document]
	users      *users.Service
	workspace  workspace.Collections
	events     *audit.DocStore
	notifier   *recordingNotifier
	cache      *recordingCache
	tasks      *async.Tracker
	metrics    *observability.Metrics
	logs       *bytes.Buffer
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := observability.NewLogger(observability.DebugLevel, &syncWriter{buf: logs})

	f := &fixture{
		businesses: docstore.NewMemoryCollection[*business.Document](),
		workspace:  workspace.NewMemoryCollections(),
		events:     audit.NewDocStore(docstore.NewMemoryCollection[*audit.AuditEvent]()),
		notifier:   &recordingNotifier{},
		cache:      &recordingCache{},
		tasks:      async.NewTracker(logger),
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		logs:       logs,
	}
	f.users = users.NewService(docstore.NewMemoryCollection[*users.User](), logger)
	ws := workspace.NewService(f.workspace)

	opts := Options{
		Businesses: f.businesses,
		Users:      f.users,
		Workspace:  ws,
		Roles:      f.cache,
		Audit:      f.events,
		Notifier:   f.notifier,
		Tasks:      f.tasks,
		Metrics:    f.metrics,
		Logger:     logger,
		Cascades: []Cascade{
			{Name: "workspace", Delete: func(ctx context.Context, businessID string) error {
				_, err := ws.DeleteBusiness(ctx, businessID)
				return err
			}},
			{Name: "audit events", Delete: func(ctx context.Context, businessID string) error {
				_, err := f.events.DeleteBusiness(ctx, businessID)
				return err
			}},
		},
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	f.svc = NewService(opts)

	var seq atomic.Int64
	f.svc.newID = func() string { return fmt.Sprintf("biz-%d", seq.Add(1)) }
	return f
}

// flush waits for background audit and notification tasks
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tasks.Wait(5*time.Second))
}

func (f *fixture) auditTypes(t *testing.T, businessID string) []audit.EventType {
	t.Helper()
	f.flush(t)
	events, err := f.events.Search(context.Background(), audit.SearchFilter{BusinessID: businessID, Limit: 100})
	require.NoError(t, err)
	out := make([]audit.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestCreateBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBusiness(ctx, "  Acme Design  ", "owner")
	require.NoError(t, err)
	assert.Equal(t, "Acme Design", b.Name())
	assert.Equal(t, "owner", b.Owner())
	assert.Equal(t, int64(1), b.Version())
	assert.Equal(t, 1, b.Counts().SuperAdmin)

	u, err := f.users.Get(ctx, "owner")
	require.NoError(t, err)
	m, ok := u.Membership(b.ID())
	require.True(t, ok)
	assert.Equal(t, business.RoleSuperAdmin, m.Role)
	assert.Equal(t, b.ID(), u.DefaultBusiness)

	assert.Equal(t, []audit.EventType{audit.EventTypeBusinessCreate}, f.auditTypes(t, b.ID()))
}

func TestCreateBusiness_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBusiness(ctx, "   ", "owner")
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.svc.CreateBusiness(ctx, string(long), "owner")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = f.svc.CreateBusiness(ctx, "Acme", "")
	assert.Error(t, err)
	assert.Zero(t, f.businesses.Len())
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)

	_, err = f.svc.AddMember(context.Background(), "missing", "u1", business.RoleMember)
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestGet_RejectsInconsistentDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.businesses.Insert(ctx, &business.Document{
		ID:           "bad",
		Owner:        "owner",
		Members:      []business.Member{{UserID: "owner", Role: business.RoleSuperAdmin}},
		MemberCounts: business.MemberCounts{SuperAdmin: 3},
	}))

	_, err := f.svc.Get(ctx, "bad")
	assert.ErrorIs(t, err, business.ErrInconsistentDocument)
}
