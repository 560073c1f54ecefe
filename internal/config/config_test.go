package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIG_PATH", "LISTEN_ADDR", "POSTGRES_DSN", "REDIS_ADDR", "KAFKA_BROKER", "JWT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen_addr: \":9000\"\nredis_addr: \"redis:6379\"\n"), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LISTEN_ADDR", ":7777")

	cfg := Load()
	assert.Equal(t, ":7777", cfg.ListenAddr)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoadKafkaBrokerEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "broker-1:9092")

	cfg := Load()
	assert.Equal(t, []string{"broker-1:9092"}, cfg.KafkaBrokers)
}
