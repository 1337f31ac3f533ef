package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Address())
	assert.True(t, cfg.Server.MetricsEnabled)
	assert.Equal(t, BackendMongo, cfg.Database.Backend)
	assert.Equal(t, "postmessages", cfg.Database.Collection)
	assert.Equal(t, 5*time.Second, cfg.Database.Timeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DB_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://example.com")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.False(t, cfg.Server.MetricsEnabled)
	assert.Equal(t, BackendMemory, cfg.Database.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.Timeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	t.Setenv("STORE_BACKEND", "postgres")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("PORT", "eighty")
	_, err = LoadConfig()
	assert.Error(t, err)
}
