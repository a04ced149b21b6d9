package audit

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatJSON, f)

	f, err = ParseExportFormat("ndjson")
	require.NoError(t, err)
	assert.Equal(t, "application/x-ndjson", f.ContentType())
	assert.Equal(t, "audit-b1.ndjson", f.Filename("b1"))

	_, err = ParseExportFormat("xml")
	assert.Error(t, err)
}

func TestWriteExport_CSVRoleColumns(t *testing.T) {
	events := []*AuditEvent{{
		ID:         "e1",
		BusinessID: "b1",
		Timestamp:  time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		EventType:  EventTypeMemberRoleChange,
		Status:     EventStatusSuccess,
		ResourceID: "alice",
		Changes: &ChangeDetails{
			Before: map[string]interface{}{"role": "Member"},
			After:  map[string]interface{}{"role": "Admin"},
		},
	}, {
		ID:         "e2",
		BusinessID: "b1",
		EventType:  EventTypeRequestFailed,
		StatusCode: 409,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, events, ExportFormatCSV))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	assert.Equal(t, "2026-03-09T10:00:00Z", rows[1][col["Timestamp"]])
	assert.Equal(t, "Member", rows[1][col["RoleBefore"]])
	assert.Equal(t, "Admin", rows[1][col["RoleAfter"]])
	assert.Empty(t, rows[1][col["StatusCode"]])
	assert.Empty(t, rows[2][col["RoleAfter"]])
	assert.Equal(t, "409", rows[2][col["StatusCode"]])
}

func TestWriteExport_EmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, nil, ExportFormatJSON))
	assert.JSONEq(t, `[]`, buf.String())
}
