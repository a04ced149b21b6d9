package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := contextkeys.GetAuditLogger(ctx).(Logger); ok {
		return logger
	}
	// Return a no-op logger if none is set
	return NopLogger{}
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }
func (NopLogger) Close() error { return nil }

// NewEvent creates a successful event for businessID with the actor and
// request id taken from ctx
func NewEvent(ctx context.Context, eventType EventType, businessID string) *AuditEvent {
	return &AuditEvent{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		Status:     EventStatusSuccess,
		ActorID:    contextkeys.GetUserID(ctx),
		RequestID:  contextkeys.GetRequestID(ctx),
		Metadata:   make(map[string]interface{}),
	}
}

// ensureID fills the fields a caller-built event may have left empty
func ensureID(event *AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = EventStatusSuccess
	}
}

// LogDenied records an access denied event through the logger in ctx
func LogDenied(ctx context.Context, businessID, method, path, reason string) error {
	event := NewEvent(ctx, EventTypeAuthzAccessDenied, businessID)
	event.Status = EventStatusDenied
	event.ResourceType = ResourceTypeBusiness
	event.ResourceID = businessID
	event.Method = method
	event.Path = path
	event.Message = "Access denied: " + reason
	return FromContext(ctx).Log(ctx, event)
}
