package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/invitely/invitely/internal/config"
	"github.com/invitely/invitely/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestNewConfig(t *testing.T) {
	cfg := config.Config{Env: "staging"}
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.OTLPEndpoint = "collector:4317"
	cfg.Telemetry.SampleRatio = 0.25

	got := telemetry.NewConfig(cfg, "invitely-api", "1.2.3")

	assert.Equal(t, telemetry.Config{
		ServiceName:    "invitely-api",
		ServiceVersion: "1.2.3",
		Environment:    "staging",
		OTLPEndpoint:   "collector:4317",
		Enabled:        true,
		SampleRatio:    0.25,
	}, got)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), telemetry.Sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), telemetry.Sampler(1).Description())
	assert.Contains(t, telemetry.Sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}
