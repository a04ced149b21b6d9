package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ParseExportFormat maps a query value to a format. Empty means JSON.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case "":
		return ExportFormatJSON, nil
	case ExportFormatJSON, ExportFormatCSV, ExportFormatNDJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType is the MIME type served for f
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	}
	return "application/json"
}

// Filename is the attachment name for an export of businessID
func (f ExportFormat) Filename(businessID string) string {
	return fmt.Sprintf("audit-%s.%s", businessID, f)
}

// csvColumns fixes the CSV layout. Role columns come from the before/after
// snapshot recorded by membership changes.
var csvColumns = []struct {
	name  string
	value func(e *AuditEvent) string
}{
	{"ID", func(e *AuditEvent) string { return e.ID }},
	{"Timestamp", func(e *AuditEvent) string { return e.Timestamp.UTC().Format(time.RFC3339) }},
	{"BusinessID", func(e *AuditEvent) string { return e.BusinessID }},
	{"EventType", func(e *AuditEvent) string { return string(e.EventType) }},
	{"Status", func(e *AuditEvent) string { return string(e.Status) }},
	{"ActorID", func(e *AuditEvent) string { return e.ActorID }},
	{"ResourceType", func(e *AuditEvent) string { return string(e.ResourceType) }},
	{"ResourceID", func(e *AuditEvent) string { return e.ResourceID }},
	{"RoleBefore", func(e *AuditEvent) string { return changedRole(e, false) }},
	{"RoleAfter", func(e *AuditEvent) string { return changedRole(e, true) }},
	{"RequestID", func(e *AuditEvent) string { return e.RequestID }},
	{"StatusCode", func(e *AuditEvent) string {
		if e.StatusCode == 0 {
			return ""
		}
		return strconv.Itoa(e.StatusCode)
	}},
	{"Message", func(e *AuditEvent) string { return e.Message }},
	{"ErrorMessage", func(e *AuditEvent) string { return e.ErrorMessage }},
}

func changedRole(e *AuditEvent, after bool) string {
	if e.Changes == nil {
		return ""
	}
	snapshot := e.Changes.Before
	if after {
		snapshot = e.Changes.After
	}
	if role, ok := snapshot["role"].(string); ok {
		return role
	}
	return ""
}

// WriteExport streams events to w in format
func WriteExport(w io.Writer, events []*AuditEvent, format ExportFormat) error {
	switch format {
	case ExportFormatCSV:
		return writeCSV(w, events)
	case ExportFormatNDJSON:
		enc := json.NewEncoder(w)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encode event %s: %w", e.ID, err)
			}
		}
		return nil
	}
	if events == nil {
		events = []*AuditEvent{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func writeCSV(w io.Writer, events []*AuditEvent) error {
	cw := csv.NewWriter(w)
	row := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		row[i] = c.name
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	for _, e := range events {
		for i, c := range csvColumns {
			row[i] = c.value(e)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
