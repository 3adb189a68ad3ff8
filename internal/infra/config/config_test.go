package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StorageMode)
	assert.Equal(t, "chat.messages", cfg.ChatTopic)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadMongoModeRequiresBackends(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCYLLA_HOSTS")

	t.Setenv("SCYLLA_HOSTS", "scylla-1, scylla-2")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"scylla-1", "scylla-2"}, cfg.ScyllaHosts)
}

func TestLoadRejectsUnknownStorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "cassette-tape")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_MODE")
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092 , broker-2:9092,")
	t.Setenv("SESSION_TTL", "36h")
	t.Setenv("S3_USE_SSL", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 36*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL")
}
