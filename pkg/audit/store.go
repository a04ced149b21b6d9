package audit

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/docstore"
)

// Store provides methods for querying and managing audit logs
type Store interface {
	// Search returns matching events, newest first
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)

	// Get retrieves a specific audit event by ID
	Get(ctx context.Context, id string) (*AuditEvent, error)

	// GetStats summarizes the events of one business
	GetStats(ctx context.Context, businessID string, startTime, endTime *time.Time) (*AuditStats, error)

	// Export exports audit logs in the specified format
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)

	// DeleteBusiness removes every event of a business
	DeleteBusiness(ctx context.Context, businessID string) (int64, error)

	// Cleanup removes audit logs older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// DocStore keeps audit events in a document collection scoped by business.
// It is both a Logger and a Store.
type DocStore struct {
	events docstore.Collection[*AuditEvent]
	now    func() time.Time
}

// NewDocStore creates a store over events
func NewDocStore(events docstore.Collection[*AuditEvent]) *DocStore {
	return &DocStore{
		events: events,
		now:    time.Now,
	}
}

// Log stores event
func (s *DocStore) Log(ctx context.Context, event *AuditEvent) error {
	ensureID(event)
	if err := s.events.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the collection outlives the logger
func (s *DocStore) Close() error {
	return nil
}

// Search searches audit logs based on filters
func (s *DocStore) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	all, err := s.events.List(ctx, filter.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}

	matched := make([]*AuditEvent, 0, len(all))
	for _, e := range all {
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}
	slices.SortStableFunc(matched, func(a, b *AuditEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*AuditEvent{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Get retrieves a specific audit event by ID. A missing event returns nil.
func (s *DocStore) Get(ctx context.Context, id string) (*AuditEvent, error) {
	event, err := s.events.Get(ctx, id)
	if docstore.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return event, nil
}

// GetStats retrieves audit log statistics
func (s *DocStore) GetStats(ctx context.Context, businessID string, startTime, endTime *time.Time) (*AuditStats, error) {
	events, err := s.Search(ctx, SearchFilter{BusinessID: businessID, StartTime: startTime, EndTime: endTime})
	if err != nil {
		return nil, err
	}

	stats := &AuditStats{
		EventsByType:   make(map[EventType]int64),
		EventsByStatus: make(map[EventStatus]int64),
	}
	actors := make(map[string]struct{})
	for _, e := range events {
		stats.TotalEvents++
		stats.EventsByType[e.EventType]++
		stats.EventsByStatus[e.Status]++
		if e.ActorID != "" {
			actors[e.ActorID] = struct{}{}
		}
		if e.Status == EventStatusDenied {
			stats.AccessDenials++
		}
	}
	stats.UniqueActors = int64(len(actors))
	if len(events) > 0 {
		// events are newest first
		stats.TimeRange = &TimeRange{Start: events[len(events)-1].Timestamp, End: events[0].Timestamp}
	}
	return stats, nil
}

// Export exports audit logs in the specified format
func (s *DocStore) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	events, err := s.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteExport(&buf, events, format); err != nil {
		return nil, fmt.Errorf("export audit events: %w", err)
	}
	return buf.Bytes(), nil
}

// DeleteBusiness removes every event of businessID
func (s *DocStore) DeleteBusiness(ctx context.Context, businessID string) (int64, error) {
	n, err := s.events.DeleteScope(ctx, businessID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return n, nil
}

// Cleanup removes audit logs older than the retention period
func (s *DocStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff, ok := policy.Cutoff(s.now())
	if !ok {
		return 0, nil
	}

	all, err := s.events.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list audit events: %w", err)
	}

	var removed int64
	for _, e := range all {
		if !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.events.Delete(ctx, e.ID); err != nil && !docstore.IsNotFound(err) {
			return removed, fmt.Errorf("failed to delete audit event %s: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}
