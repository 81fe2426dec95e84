package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorhub/ragcache/pkg/utils"
)

func TestLoadConfig_Defaults(t *testing.T) {
	utils.LoadConfig(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, "ragcache:", cfg.Valkey.KeyPrefix)
	assert.Equal(t, 600*time.Second, cfg.Jobs.LockTTL)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadConfig_EnvOverridesResolveThroughViper(t *testing.T) {
	utils.LoadConfig(t.TempDir())

	t.Setenv("APP_PORT", "8088")
	t.Setenv("CACHE_ENABLED", "off")
	t.Setenv("JOB_LOCK_TTL", "5m")
	t.Setenv("JOB_MAX_PROCESSING_TIME", "1800")
	t.Setenv("INGEST_WORKER_POOL_SIZE", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.App.Port)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.LockTTL)
	assert.Equal(t, 1800*time.Second, cfg.Jobs.MaxProcessingTime)
	assert.Equal(t, 7, cfg.WorkerPool.Size)
}
