package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/workspace"
)

func createBusiness(t *testing.T, f *fixture) *business.Business {
	t.Helper()
	b, err := f.svc.CreateBusiness(context.Background(), "Acme", "owner")
	require.NoError(t, err)
	return b
}

func fill(t *testing.T, f *fixture, businessID string, role business.Role, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.svc.AddMember(context.Background(), businessID, fmt.Sprintf("%s-%d", role, i), role)
		require.NoError(t, err)
	}
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)

	updated, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Counts().Admin)
	assert.Equal(t, int64(2), updated.Version())

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	role, ok := stored.RoleOf("alice")
	require.True(t, ok)
	assert.Equal(t, business.RoleAdmin, role)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	m, ok := u.Membership(b.ID())
	require.True(t, ok)
	assert.Equal(t, business.RoleAdmin, m.Role)

	assert.Contains(t, f.cache.members, b.ID()+"/alice")
	assert.ElementsMatch(t, []audit.EventType{audit.EventTypeMemberAdd, audit.EventTypeBusinessCreate}, f.auditTypes(t, b.ID()))
	assert.Equal(t, []notify.Type{notify.TypeMemberAdded}, f.notifier.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MembershipOperationsTotal.WithLabelValues("add_member", "success")))
}

func TestAddMember_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)

	_, err := f.svc.AddMember(ctx, b.ID(), "owner", business.RoleMember)
	assert.ErrorIs(t, err, business.ErrDuplicateMember)

	_, err = f.svc.AddMember(ctx, b.ID(), "bob", business.Role("Guest"))
	assert.ErrorIs(t, err, business.ErrInvalidRole)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version())
	assert.Equal(t, 1, stored.Counts().Total())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MembershipOperationsTotal.WithLabelValues("add_member", "duplicate")))
}

func TestAddMember_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	fill(t, f, b.ID(), business.RoleAdmin, business.MaxAdmins)

	_, err := f.svc.AddMember(ctx, b.ID(), "one-too-many", business.RoleAdmin)
	require.ErrorIs(t, err, business.ErrQuotaExceeded)
	q, ok := business.AsQuotaExceeded(err)
	require.True(t, ok)
	assert.Equal(t, business.MaxAdmins, q.Current)
	assert.Equal(t, business.MaxAdmins, q.Limit)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, business.MaxAdmins, stored.Counts().Admin)
	_, err = f.users.Get(ctx, "one-too-many")
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QuotaRejectionsTotal.WithLabelValues("Admin")))
	assert.Contains(t, f.auditTypes(t, b.ID()), audit.EventTypeQuotaRejected)
}

func TestAddMember_ConcurrentAddsCannotExceedCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	fill(t, f, b.ID(), business.RoleAdmin, business.MaxAdmins-1)

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.AddMember(ctx, b.ID(), fmt.Sprintf("racer-%d", i), business.RoleAdmin)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, business.ErrQuotaExceeded) || errors.Is(err, docstore.ErrRetriesExhausted), err)
	}
	assert.Equal(t, 1, successes)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, business.MaxAdmins, stored.Counts().Admin)
}

func TestAddMember_RetriesVersionConflict(t *testing.T) {
	var store *conflictingStore
	f := newFixture(t, func(o *Options) {
		store = &conflictingStore{Collection: o.Businesses}
		o.Businesses = store
	})
	ctx := context.Background()
	b := createBusiness(t, f)

	store.remaining.Store(2)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.VersionConflictsTotal.WithLabelValues("add_member")))

	store.remaining.Store(100)
	_, err = f.svc.AddMember(ctx, b.ID(), "bob", business.RoleMember)
	assert.ErrorIs(t, err, docstore.ErrRetriesExhausted)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	_, ok := stored.Member("bob")
	assert.False(t, ok)
}

func TestAddMember_DependentFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Users = brokenDirectory{UserDirectory: o.Users}
	})
	ctx := context.Background()
	b := createBusiness(t, f)

	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	_, ok := stored.Member("alice")
	assert.True(t, ok)

	// one failure from CreateBusiness, one from AddMember
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DependentUpdateFailuresTotal.WithLabelValues("user_businesses")))
	assert.Contains(t, f.logs.String(), "Dependent update failed")
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)

	require.NoError(t, f.workspace.Tasks.Insert(ctx, &workspace.Task{ID: "t1", BusinessID: b.ID(), Assignees: []string{"alice", "owner"}}))
	require.NoError(t, f.workspace.Projects.Insert(ctx, &workspace.Project{ID: "p1", BusinessID: b.ID(), Team: []string{"alice"}}))

	updated, err := f.svc.RemoveMember(ctx, b.ID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Counts().Member)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	_, ok := u.Membership(b.ID())
	assert.False(t, ok)

	task, err := f.workspace.Tasks.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, task.Assignees)
	project, err := f.workspace.Projects.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, project.Team)

	_, err = f.svc.RemoveMember(ctx, b.ID(), "alice")
	assert.ErrorIs(t, err, business.ErrMemberNotFound)

	assert.Contains(t, f.auditTypes(t, b.ID()), audit.EventTypeMemberRemove)
}

func TestRemoveMember_LastSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)

	_, err := f.svc.RemoveMember(ctx, b.ID(), "owner")
	assert.ErrorIs(t, err, business.ErrLastSuperAdmin)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "owner", stored.Owner())
	assert.Equal(t, int64(1), stored.Version())
}

func TestRemoveMember_OwnerHandsOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	_, err := f.svc.AddMember(ctx, b.ID(), "second", business.RoleSuperAdmin)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, b.ID(), "third", business.RoleSuperAdmin)
	require.NoError(t, err)

	updated, err := f.svc.RemoveMember(ctx, b.ID(), "owner")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Owner())
	assert.Equal(t, 2, updated.Counts().SuperAdmin)
}

func TestUpdateMemberRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)

	updated, previous, err := f.svc.UpdateMemberRole(ctx, b.ID(), "alice", business.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, business.RoleMember, previous)
	assert.Equal(t, 1, updated.Counts().Admin)
	assert.Equal(t, 0, updated.Counts().Member)

	u, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	m, _ := u.Membership(b.ID())
	assert.Equal(t, business.RoleAdmin, m.Role)

	assert.Contains(t, f.auditTypes(t, b.ID()), audit.EventTypeMemberRoleChange)
}

func TestUpdateMemberRole_SameRoleIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)
	before := len(f.auditTypes(t, b.ID()))

	updated, previous, err := f.svc.UpdateMemberRole(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, business.RoleMember, previous)
	assert.Equal(t, int64(2), updated.Version())
	assert.Len(t, f.auditTypes(t, b.ID()), before)
}

func TestUpdateMemberRole_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	fill(t, f, b.ID(), business.RoleAdmin, business.MaxAdmins)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleMember)
	require.NoError(t, err)

	_, _, err = f.svc.UpdateMemberRole(ctx, b.ID(), "alice", business.RoleAdmin)
	assert.ErrorIs(t, err, business.ErrQuotaExceeded)

	_, _, err = f.svc.UpdateMemberRole(ctx, b.ID(), "owner", business.RoleAdmin)
	assert.ErrorIs(t, err, business.ErrLastSuperAdmin)

	_, _, err = f.svc.UpdateMemberRole(ctx, b.ID(), "ghost", business.RoleClient)
	assert.ErrorIs(t, err, business.ErrMemberNotFound)

	_, _, err = f.svc.UpdateMemberRole(ctx, b.ID(), "alice", business.Role("Owner"))
	assert.ErrorIs(t, err, business.ErrInvalidRole)

	stored, err := f.svc.Get(ctx, b.ID())
	require.NoError(t, err)
	role, _ := stored.RoleOf("alice")
	assert.Equal(t, business.RoleMember, role)
}

func TestListMembersAndQuotas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBusiness(t, f)
	_, err := f.svc.AddMember(ctx, b.ID(), "alice", business.RoleClient)
	require.NoError(t, err)

	members, err := f.svc.ListMembers(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].UserID)
	assert.True(t, members[0].IsOwner)
	assert.Equal(t, business.RoleClient, members[1].Role)
	assert.False(t, members[1].IsOwner)

	quotas, err := f.svc.Quotas(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, quotas, 4)
	assert.Equal(t, business.RoleSuperAdmin, quotas[0].Role)
	assert.Equal(t, 1, quotas[0].Current)
	assert.Equal(t, 5, quotas[0].Limit)
	assert.True(t, quotas[3].Unlimited)
	assert.Equal(t, 1, quotas[3].Current)

	_, err = f.svc.Quotas(ctx, "missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}
