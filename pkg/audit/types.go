package audit

import (
	"slices"
	"time"
)

// EventType names what happened
type EventType string

const (
	EventTypeBusinessCreate EventType = "business.create"
	EventTypeBusinessUpdate EventType = "business.update"
	EventTypeBusinessDelete EventType = "business.delete"

	EventTypeMemberAdd        EventType = "member.add"
	EventTypeMemberRemove     EventType = "member.remove"
	EventTypeMemberRoleChange EventType = "member.role_change"
	EventTypeQuotaRejected    EventType = "member.quota_rejected"

	EventTypeInvitationCreate EventType = "invitation.create"
	EventTypeInvitationAccept EventType = "invitation.accept"
	EventTypeInvitationRevoke EventType = "invitation.revoke"

	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeRequestFailed     EventType = "request.failed"
)

var eventTypes = []EventType{
	EventTypeBusinessCreate, EventTypeBusinessUpdate, EventTypeBusinessDelete,
	EventTypeMemberAdd, EventTypeMemberRemove, EventTypeMemberRoleChange, EventTypeQuotaRejected,
	EventTypeInvitationCreate, EventTypeInvitationAccept, EventTypeInvitationRevoke,
	EventTypeAuthzAccessDenied, EventTypeRequestFailed,
}

// Valid reports whether t is one of the recorded event types
func (t EventType) Valid() bool { return slices.Contains(eventTypes, t) }

// EventStatus is the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

func (s EventStatus) Valid() bool {
	return s == EventStatusSuccess || s == EventStatusFailure || s == EventStatusDenied
}

// ResourceType is the kind of thing an event touched
type ResourceType string

const (
	ResourceTypeBusiness   ResourceType = "business"
	ResourceTypeMember     ResourceType = "member"
	ResourceTypeInvitation ResourceType = "invitation"
)

// AuditEvent is one audit log entry. Events belong to the business they
// concern and are removed with it.
type AuditEvent struct {
	ID         string      `json:"id" bson:"_id"`
	BusinessID string      `json:"business_id" bson:"businessId"`
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	EventType  EventType   `json:"event_type" bson:"eventType"`
	Status     EventStatus `json:"status" bson:"status"`
	ActorID    string      `json:"actor_id,omitempty" bson:"actorId,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty" bson:"resourceType,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty" bson:"resourceId,omitempty"`

	// set for events raised by the HTTP layer
	RequestID  string `json:"request_id,omitempty" bson:"requestId,omitempty"`
	Method     string `json:"method,omitempty" bson:"method,omitempty"`
	Path       string `json:"path,omitempty" bson:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty" bson:"statusCode,omitempty"`

	Message      string                 `json:"message,omitempty" bson:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty" bson:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Changes      *ChangeDetails         `json:"changes,omitempty" bson:"changes,omitempty"`

	Version int64 `json:"version" bson:"version"`
}

func (e *AuditEvent) GetID() string      { return e.ID }
func (e *AuditEvent) GetVersion() int64  { return e.Version }
func (e *AuditEvent) SetVersion(v int64) { e.Version = v }
func (e *AuditEvent) GetScope() string   { return e.BusinessID }

// ChangeDetails holds the fields an update changed, before and after
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty" bson:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty" bson:"after,omitempty"`
}

// SearchFilter selects events. Zero-valued fields match everything; Limit 0
// means no limit.
type SearchFilter struct {
	BusinessID string
	StartTime  *time.Time
	EndTime    *time.Time
	ActorID    string
	EventTypes []EventType
	Status     *EventStatus
	ResourceID string

	Limit  int
	Offset int
}

func (f SearchFilter) matches(e *AuditEvent) bool {
	switch {
	case f.BusinessID != "" && e.BusinessID != f.BusinessID,
		f.StartTime != nil && e.Timestamp.Before(*f.StartTime),
		f.EndTime != nil && e.Timestamp.After(*f.EndTime),
		f.ActorID != "" && e.ActorID != f.ActorID,
		f.Status != nil && e.Status != *f.Status,
		f.ResourceID != "" && e.ResourceID != f.ResourceID:
		return false
	}
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, e.EventType)
}

// ExportFormat is an export encoding
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// AuditStats summarizes a business's audit trail
type AuditStats struct {
	TotalEvents    int64                 `json:"total_events"`
	EventsByType   map[EventType]int64   `json:"events_by_type"`
	EventsByStatus map[EventStatus]int64 `json:"events_by_status"`
	UniqueActors   int64                 `json:"unique_actors"`
	AccessDenials  int64                 `json:"access_denials"`
	TimeRange      *TimeRange            `json:"time_range,omitempty"`
}

// TimeRange spans the oldest to the newest event
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy bounds how long events are kept. Zero or negative
// RetentionDays keeps everything.
type RetentionPolicy struct {
	RetentionDays int
}

// Cutoff returns the instant before which events expire, and false when the
// policy keeps everything
func (p RetentionPolicy) Cutoff(now time.Time) (time.Time, bool) {
	if p.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -p.RetentionDays), true
}
