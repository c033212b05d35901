package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestToAttributes(t *testing.T) {
	tests := []struct {
		name     string
		kv       []any
		expected []attribute.KeyValue
	}{
		{
			name:     "empty",
			kv:       []any{},
			expected: []attribute.KeyValue{},
		},
		{
			name: "typed values",
			kv:   []any{"method", "ping", "count", 3, "ok", true, "err", errors.New("boom")},
			expected: []attribute.KeyValue{
				attribute.String("method", "ping"),
				attribute.Int("count", 3),
				attribute.Bool("ok", true),
				attribute.String("err", "boom"),
			},
		},
		{
			name: "dangling key",
			kv:   []any{"method", "ping", "id"},
			expected: []attribute.KeyValue{
				attribute.String("method", "ping"),
				attribute.String("id", missingAttributeValue),
			},
		},
		{
			name: "non-string key",
			kv:   []any{7, "x", "k", 1},
			expected: []attribute.KeyValue{
				attribute.String(invalidAttributeKey, "[7 x k 1]"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toAttributes(tt.kv))
		})
	}
}

func TestOtelSpanEventRecorder(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	_, span := tp.Tracer("test").Start(context.Background(), "rpc")

	r := NewOtelSpanEventRecorder(span)
	assert.Equal(t, span.SpanContext().TraceID().String(), r.TraceID())

	r.RecordEvent("accepted", "method", "ping")
	r.RecordError("rejected", "reason", "bad signature")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 2)
	assert.Equal(t, "accepted", events[0].Name)
	assert.Equal(t, "rejected", events[1].Name)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
