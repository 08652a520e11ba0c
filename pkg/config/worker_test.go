package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadWorkerConfigDefaults(t *testing.T) {
	cfg := LoadWorkerConfig("worker-1")

	assert.Equal(t, "worker-1", cfg.ConsumerName)
	assert.Equal(t, "llm-workers", cfg.ConsumerGroup)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.BackoffCap)
}

func TestLoadWorkerConfigEnvOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("BLOCK_TIMEOUT", "250ms")
	t.Setenv("BACKOFF_CAP", "5s")

	cfg := LoadWorkerConfig("worker-1")
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BlockTimeout)
	assert.Equal(t, 5*time.Second, cfg.BackoffCap)
}
