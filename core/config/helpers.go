package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GetAllSettings returns a map of the dynamic settings currently loaded
// in memory, consumed by the status endpoint.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":             Global.App.Version,
		"app_debug":               Global.App.Debug,
		"app_environment":         Global.App.Environment,
		"cache_enabled":           Global.Cache.Enabled,
		"valkey_key_prefix":       Global.Valkey.KeyPrefix,
		"job_lock_ttl":            Global.Jobs.LockTTL.String(),
		"job_max_processing_time": Global.Jobs.MaxProcessingTime.String(),
		"job_sweep_interval":      Global.Jobs.SweepInterval.String(),
		"ingest_worker_pool_size": Global.WorkerPool.Size,
	}
}

// Helpers. Values resolve through viper (wired to the process
// environment and .env by utils.LoadConfig) so flags, env vars and
// dotenv files share one namespace.
func getEnv(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := viper.GetString(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := viper.GetString(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration parses either a Go duration string ("5m") or a plain
// number of seconds ("300").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := viper.GetString(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
