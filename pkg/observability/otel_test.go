package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{}, NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestInitOTel_UnreachableCollector(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:1",
		ServiceName:    "synergyhub-test",
		ServiceVersion: "0.0.0",
		Insecure:       true,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = providers.Shutdown(ctx)
}

func TestOTelProviders_Shutdown(t *testing.T) {
	var none *OTelProviders
	assert.NoError(t, none.Shutdown(context.Background()))
	assert.NoError(t, (&OTelProviders{}).Shutdown(context.Background()))

	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithTraceContext(t *testing.T) {
	t.Run("recording span adds ids", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		var buf bytes.Buffer
		WithTraceContext(ctx, NewLogger(InfoLevel, &buf).WithField("business_id", "b1")).Info("hello")

		entry := decodeLine(t, &buf)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
		assert.Equal(t, "b1", entry["business_id"])
	})

	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		assert.Same(t, logger, WithTraceContext(context.Background(), logger))
	})

	t.Run("unsampled span leaves logger unchanged", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		assert.Same(t, logger, WithTraceContext(ctx, logger))
	})
}

func TestTracer(t *testing.T) {
	_, span := Tracer("membership").Start(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, span)
}
