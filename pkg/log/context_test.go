package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/erc7824/docvault/pkg/log"
)

func TestContextLogger(t *testing.T) {
	assert.IsType(t, log.NoopLogger{}, log.FromContext(context.Background()))

	inner := newRecordingLogger()
	ctx := log.SetContextLogger(context.Background(), inner)
	assert.Same(t, inner, log.FromContext(ctx))

	ctx = log.SetContextLogger(context.Background(), nil)
	assert.IsType(t, log.NoopLogger{}, log.FromContext(ctx))
}

func TestContextLogger_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "rpc")
	defer span.End()

	inner := newRecordingLogger()
	lg := log.FromContext(log.SetContextLogger(ctx, inner))
	assert.IsType(t, log.SpanLogger{}, lg)

	lg.Info("hello")
	assert.Equal(t, span.SpanContext().TraceID().String(), kvMap(inner.last.KeysAndValues)["traceId"])
}
