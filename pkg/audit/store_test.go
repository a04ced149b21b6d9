package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
)

func newTestStore(t *testing.T) *DocStore {
	t.Helper()
	store := NewDocStore(docstore.NewMemoryCollection[*AuditEvent]())
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	events := []*AuditEvent{
		{BusinessID: "b1", EventType: EventTypeBusinessCreate, ActorID: "owner", Timestamp: base},
		{BusinessID: "b1", EventType: EventTypeMemberAdd, ActorID: "owner", ResourceID: "u1", Timestamp: base.Add(time.Minute)},
		{BusinessID: "b1", EventType: EventTypeAuthzAccessDenied, Status: EventStatusDenied, ActorID: "u1", Timestamp: base.Add(2 * time.Minute)},
		{BusinessID: "b2", EventType: EventTypeBusinessCreate, ActorID: "other", Timestamp: base.Add(3 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, store.Log(ctx, e))
		require.NotEmpty(t, e.ID)
	}
	return store
}

func TestDocStore_Search(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events, err := store.Search(ctx, SearchFilter{BusinessID: "b1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventTypeAuthzAccessDenied, events[0].EventType, "newest first")
	assert.Equal(t, EventStatusSuccess, events[1].Status)

	events, err = store.Search(ctx, SearchFilter{BusinessID: "b1", EventTypes: []EventType{EventTypeMemberAdd, EventTypeBusinessCreate}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	denied := EventStatusDenied
	events, err = store.Search(ctx, SearchFilter{BusinessID: "b1", Status: &denied})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].ActorID)

	events, err = store.Search(ctx, SearchFilter{BusinessID: "b1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeMemberAdd, events[0].EventType)

	events, err = store.Search(ctx, SearchFilter{BusinessID: "b1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, events)

	start := time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC)
	events, err = store.Search(ctx, SearchFilter{BusinessID: "b1", StartTime: &start, ActorID: "owner"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDocStore_Get(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events, err := store.Search(ctx, SearchFilter{BusinessID: "b2"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := store.Get(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "other", got.ActorID)

	got, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocStore_GetStats(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.GetStats(context.Background(), "b1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, int64(2), stats.UniqueActors)
	assert.Equal(t, int64(1), stats.AccessDenials)
	assert.Equal(t, int64(1), stats.EventsByType[EventTypeMemberAdd])
	require.NotNil(t, stats.TimeRange)
	assert.True(t, stats.TimeRange.Start.Before(stats.TimeRange.End))
}

func TestDocStore_Export(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	filter := SearchFilter{BusinessID: "b1"}

	data, err := store.Export(ctx, filter, ExportFormatJSON)
	require.NoError(t, err)
	var decoded []AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 3)

	data, err = store.Export(ctx, filter, ExportFormatNDJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))

	data, err = store.Export(ctx, filter, ExportFormatCSV)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "BusinessID", rows[0][2])
	assert.Equal(t, "b1", rows[1][2])

	data, err = store.Export(ctx, SearchFilter{BusinessID: "none"}, ExportFormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestDocStore_DeleteBusinessAndCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.DeleteBusiness(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	store.now = func() time.Time { return time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC) }
	removed, err := store.Cleanup(ctx, RetentionPolicy{RetentionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = store.Cleanup(ctx, RetentionPolicy{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNewEvent_UsesContext(t *testing.T) {
	ctx := contextkeys.WithUserID(context.Background(), "actor")
	ctx = contextkeys.WithRequestID(ctx, "req-1")

	event := NewEvent(ctx, EventTypeMemberRemove, "b1")
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "actor", event.ActorID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.Equal(t, "b1", event.GetScope())
}

func TestFromContext(t *testing.T) {
	assert.IsType(t, NopLogger{}, FromContext(context.Background()))

	store := NewDocStore(docstore.NewMemoryCollection[*AuditEvent]())
	ctx := WithLogger(context.Background(), store)
	assert.Same(t, store, FromContext(ctx))

	require.NoError(t, LogDenied(ctx, "b1", "DELETE", "/businesses/b1", "not a member"))
	events, err := store.Search(ctx, SearchFilter{BusinessID: "b1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventStatusDenied, events[0].Status)
}
