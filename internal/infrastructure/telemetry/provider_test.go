package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_Disabled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p, err := Setup(context.Background(), Config{ServiceName: "connhub"}, zap.New(core))
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.NotNil(t, p.Meter("connhub"))
	assert.Equal(t, 1, logs.FilterMessage("Telemetry disabled, using no-op providers").Len())

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, zapcore.InfoLevel))

	p.EnableSpanProfiles()
	assert.False(t, p.spanProfiles)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, samplerFor(tt.ratio).Description(), tt.want)
	}
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}).With(zap.String("platform", "shopline"))

	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept too")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "shopline", logs.All()[0].ContextMap()["platform"])
}
