package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	t.Run("defaults to info and json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("", "", &buf)
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

		logger.WithField("provider", "google").Info("hello")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "google", entry["provider"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("debug", "text", &buf)
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

		logger.Debug("visible")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", "json", nil)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLogger("info", "xml", nil)
		assert.Error(t, err)
	})
}

func TestWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", "json", &buf)
	require.NoError(t, err)

	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		assert.Equal(t, logrus.FieldLogger(logger), WithTraceContext(context.Background(), logger))
	})

	t.Run("recording span adds ids", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		buf.Reset()
		WithTraceContext(ctx, logger).Info("traced")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})
}
