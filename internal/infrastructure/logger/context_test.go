package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestWithConnection(t *testing.T) {
	ctx := WithConnection(context.Background(), "c-1", "shopline")
	assert.Equal(t, "c-1", GetConnectionID(ctx))
	assert.Equal(t, "shopline", GetPlatform(ctx))

	ctx = WithConnection(ctx, "c-2", "")
	assert.Equal(t, "c-2", GetConnectionID(ctx))
	assert.Equal(t, "shopline", GetPlatform(ctx))
}

func TestContextLogger_InjectsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithConnection(ctx, "conn-1", "nextengine")

	L(ctx).With(zap.String("strategy", "correlation")).Info("Identity resolved")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "conn-1", fields["connection_id"])
	assert.Equal(t, "nextengine", fields["platform"])
	assert.Equal(t, "correlation", fields["strategy"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextLogger_TraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "lifecycle.refresh")
	defer span.End()

	core, logs := observer.New(zapcore.InfoLevel)
	WithLogger(ctx, zap.New(core)).Warn("Refresh failed")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestWithLogger_Nil(t *testing.T) {
	assert.NotPanics(t, func() {
		WithLogger(context.Background(), nil).Error("dropped")
	})
}
