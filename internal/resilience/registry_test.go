package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/resilience"
)

func TestRegistry_RegistersExecutor(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := testConfig("storage")
	cfg.Registry = registry

	exec := resilience.NewExecutor(cfg)
	assert.Equal(t, "storage", exec.Name())

	health := registry.Health("storage")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())

	assert.Nil(t, registry.Health("unknown"))
}

func TestRegistry_RecordsOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := testConfig("storage")
	cfg.MaxRetries = 1
	cfg.Registry = registry
	exec := resilience.NewExecutor(cfg)

	require.NoError(t, exec.Do(context.Background(), func(context.Context) error { return nil }))

	health := registry.Health("storage")
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Nil(t, health.LastFailureAt)

	_ = exec.Do(context.Background(), func(context.Context) error { return errors.New("disk full") })

	health = registry.Health("storage")
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "disk full", health.LastError)
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"storage-s3", "lock-redis", "storage-local"} {
		cfg := testConfig(name)
		cfg.Registry = registry
		resilience.NewExecutor(cfg)
	}

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "lock-redis", all[0].Name)
	assert.Equal(t, "storage-local", all[1].Name)
	assert.Equal(t, "storage-s3", all[2].Name)
}
