package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("quota check")
	logger.Info("member added")
	assert.Zero(t, buf.Len())
	assert.False(t, logger.Enabled(InfoLevel))
	assert.True(t, logger.Enabled(ErrorLevel))

	logger.Warn("dependent update failed")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "dependent update failed", entry["msg"])

	buf.Reset()
	logger.Error("cascade failed")
	assert.Equal(t, "ERROR", decodeEntry(t, &buf)["level"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("business_id", "b1").
		WithFields(map[string]interface{}{"role": "Admin", "current": 20}).
		WithError(errors.New("role quota exceeded")).
		Info("Add rejected")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "b1", entry["business_id"])
	assert.Equal(t, "Admin", entry["role"])
	assert.Equal(t, float64(20), entry["current"])
	assert.Equal(t, "role quota exceeded", entry["error"])
}

func TestLogger_FieldOrderIsStable(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(InfoLevel, &buf).WithFields(map[string]interface{}{"z": 1, "a": 2, "m": 3}).Info("x")
	line := buf.String()
	assert.Less(t, strings.Index(line, `"a"`), strings.Index(line, `"m"`))
	assert.Less(t, strings.Index(line, `"m"`), strings.Index(line, `"z"`))
}

func TestLogger_NoOpChaining(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.Same(t, logger, logger.WithError(nil))
	assert.Same(t, logger, logger.WithFields(nil))
}

func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(InfoLevel, &buf).WithFields(map[string]interface{}{
		"token": "inv-secret-token",
		"email": "a@example.com",
	}).Info("Invitation created")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "[REDACTED]", entry["token"])
	assert.Equal(t, "a@example.com", entry["email"])
	assert.NotContains(t, buf.String(), "inv-secret-token")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = contextkeys.WithUserID(ctx, "user-456")
	ctx = contextkeys.WithBusinessID(ctx, "biz-789")

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(ctx, "add_member")
	defer span.End()

	FromContext(ctx).Info("Member added")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "user-456", entry["user_id"])
	assert.Equal(t, "biz-789", entry["business_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
}

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, defaultLogger, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "INFO", LogLevel(42).String())
}
