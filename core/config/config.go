package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Valkey     ValkeyConfig
	Cache      CacheConfig
	Jobs       JobsConfig
	WorkerPool WorkerPoolConfig
	APIKeys    APIKeysConfig
	Metrics    MetricsConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	WorkerID           string
}

type PathsConfig struct {
	Storages string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
}

type CacheConfig struct {
	// Enabled turns the cache layer off entirely; every read degrades
	// to the system of record when false.
	Enabled bool
}

type JobsConfig struct {
	// LockTTL bounds worst-case lock hold time. It must exceed the
	// expected worst-case processing time or a second worker may pick
	// up the same job.
	LockTTL time.Duration
	// MaxProcessingTime is the age after which a processing job with no
	// live lock is swept to failed.
	MaxProcessingTime time.Duration
	// SweepInterval is how often the stuck-job sweep runs.
	SweepInterval time.Duration
	// DequeueTimeout is the blocking-pop window per poll.
	DequeueTimeout time.Duration
	MaxRetries     int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type APIKeysConfig struct {
	OpenAI         string
	EmbeddingModel string
}

type MetricsConfig struct {
	Enabled bool
	Address string
}

// Global provides access to the loaded configuration globally (Migration Helper)
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	debug := getEnvBool("APP_DEBUG", false)

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.3.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		WorkerID:           getEnv("WORKER_ID", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Name:     getEnv("DB_NAME", filepath.Join(baseDir, "ragcache.db")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
	}

	valkeyCfg := ValkeyConfig{
		Address:        getEnv("VALKEY_ADDRESS", "localhost:6379"),
		Password:       getEnv("VALKEY_PASSWORD", ""),
		DB:             getEnvInt("VALKEY_DB", 0),
		KeyPrefix:      getEnv("VALKEY_KEY_PREFIX", "ragcache:"),
		ConnectTimeout: getEnvDuration("VALKEY_CONNECT_TIMEOUT", 5*time.Second),
		OpTimeout:      getEnvDuration("VALKEY_OP_TIMEOUT", 3*time.Second),
	}

	jobsCfg := JobsConfig{
		LockTTL:           getEnvDuration("JOB_LOCK_TTL", 600*time.Second),
		MaxProcessingTime: getEnvDuration("JOB_MAX_PROCESSING_TIME", 3600*time.Second),
		SweepInterval:     getEnvDuration("JOB_SWEEP_INTERVAL", 300*time.Second),
		DequeueTimeout:    getEnvDuration("JOB_DEQUEUE_TIMEOUT", 5*time.Second),
		MaxRetries:        getEnvInt("JOB_MAX_RETRIES", 3),
	}
	if jobsCfg.LockTTL <= 0 {
		return nil, fmt.Errorf("JOB_LOCK_TTL must be positive")
	}

	cfg := &Config{
		App:      appCfg,
		Paths:    pathsCfg,
		Database: dbCfg,
		Valkey:   valkeyCfg,
		Cache:    CacheConfig{Enabled: getEnvBool("CACHE_ENABLED", true)},
		Jobs:     jobsCfg,
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("INGEST_WORKER_POOL_SIZE", 4),
			QueueSize: getEnvInt("INGEST_WORKER_QUEUE_SIZE", 100),
		},
		APIKeys: APIKeysConfig{
			OpenAI:         getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Address: getEnv("METRICS_ADDRESS", ":9090"),
		},
	}

	Global = cfg
	return cfg, nil
}
