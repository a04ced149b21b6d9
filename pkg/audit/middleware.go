package audit

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// Middleware puts the audit Logger on each request context and records
// refused or failed requests against business routes. Successful changes
// and quota refusals are audited by the services that make them.
type Middleware struct {
	sink Logger
	log  *observability.Logger
}

// NewMiddleware creates the middleware writing to sink
func NewMiddleware(sink Logger, log *observability.Logger) *Middleware {
	return &Middleware{sink: sink, log: log}
}

// Handler must run inside a route that carries {businessId}; elsewhere it
// only attaches the logger.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLogger(r.Context(), m.sink)
		rec := &statusCapture{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		businessID := mux.Vars(r)["businessId"]
		if businessID == "" {
			return
		}
		if event := requestEvent(ctx, r, businessID, rec.code()); event != nil {
			if err := m.sink.Log(ctx, event); err != nil {
				m.log.WithError(err).WithField("business_id", businessID).Warn("Failed to record audit event")
			}
		}
	})
}

// requestEvent returns the event for a finished request, or nil when the
// outcome is not worth keeping: every 403, and mutations that hit a 5xx.
func requestEvent(ctx context.Context, r *http.Request, businessID string, status int) *AuditEvent {
	var event *AuditEvent
	switch {
	case status == http.StatusForbidden:
		event = NewEvent(ctx, EventTypeAuthzAccessDenied, businessID)
		event.Status = EventStatusDenied
		event.Message = "Access denied"
	case status >= http.StatusInternalServerError && r.Method != http.MethodGet && r.Method != http.MethodHead:
		event = NewEvent(ctx, EventTypeRequestFailed, businessID)
		event.Status = EventStatusFailure
		event.Message = "Request failed"
	default:
		return nil
	}
	event.ResourceType = ResourceTypeBusiness
	event.ResourceID = businessID
	event.Method = r.Method
	event.Path = r.URL.Path
	event.StatusCode = status
	return event
}

// statusCapture records the first status sent downstream
type statusCapture struct {
	http.ResponseWriter
	status int
}

func (c *statusCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *statusCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.ResponseWriter.Write(b)
}

func (c *statusCapture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
