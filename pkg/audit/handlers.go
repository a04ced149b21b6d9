package audit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/httputil"
)

// Handlers serves a business's audit trail. The api package mounts them
// behind the audit:read permission.
type Handlers struct {
	store Store
}

func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// EventPage is the body of a list response
type EventPage struct {
	Events []*AuditEvent `json:"events"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListEvents handles GET /businesses/{businessId}/audit
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if events == nil {
		events = []*AuditEvent{}
	}
	httputil.WriteSuccess(w, EventPage{Events: events, Count: len(events), Limit: filter.Limit, Offset: filter.Offset})
}

// ExportEvents handles GET /businesses/{businessId}/audit/export. Paging
// parameters are ignored; the export holds every matching event.
func (h *Handlers) ExportEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Limit, filter.Offset = 0, 0

	format, err := ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	data, err := h.store.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+format.Filename(filter.BusinessID))
	w.Write(data)
}

// GetStats handles GET /businesses/{businessId}/audit/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	stats, err := h.store.GetStats(r.Context(), filter.BusinessID, filter.StartTime, filter.EndTime)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// filterFromRequest reads the business from the route and the rest of the
// filter from the query string
func filterFromRequest(r *http.Request) (SearchFilter, error) {
	q := r.URL.Query()
	f := SearchFilter{
		BusinessID: httputil.PathParam(r, "businessId"),
		ActorID:    q.Get("actor_id"),
		ResourceID: q.Get("resource_id"),
	}
	if f.BusinessID == "" {
		return f, errors.New("business ID required")
	}

	var err error
	if f.StartTime, err = queryTime(q.Get("start_time"), "start_time"); err != nil {
		return f, err
	}
	if f.EndTime, err = queryTime(q.Get("end_time"), "end_time"); err != nil {
		return f, err
	}
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return f, errors.New("end_time is before start_time")
	}

	for _, raw := range strings.Split(q.Get("event_types"), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		et := EventType(raw)
		if !et.Valid() {
			return f, fmt.Errorf("unknown event type %q", raw)
		}
		f.EventTypes = append(f.EventTypes, et)
	}

	if raw := q.Get("status"); raw != "" {
		status := EventStatus(raw)
		if !status.Valid() {
			return f, fmt.Errorf("unknown status %q", raw)
		}
		f.Status = &status
	}

	page, err := httputil.ParsePage(r, 100, 1000)
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = page.Limit, page.Offset
	return f, nil
}

func queryTime(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC3339", name)
	}
	return &t, nil
}
