package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quillstack/docsearch/pkg/observability"
	"github.com/quillstack/docsearch/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Search indexing configuration
	Search SearchConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	CORSAllowedOrigins []string
}

// SearchConfig holds search index and pipeline configuration
type SearchConfig struct {
	// Enabled toggles the whole search surface. When false no index is
	// opened and the API answers 503.
	Enabled bool

	// IndexPath is the on-disk location of the index.
	IndexPath string

	Workers     int
	QueueSize   int
	PageSize    int
	TaskTimeout time.Duration

	// BulkSchedule is the cron expression for the nightly full reindex.
	// Empty disables the scheduled run.
	BulkSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Search:        loadSearchConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Host:            getEnv("DOCSEARCH_HOST", "0.0.0.0"),
		Port:            getEnv("DOCSEARCH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DOCSEARCH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DOCSEARCH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("DOCSEARCH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DOCSEARCH_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DOCSEARCH_HEALTH_PORT", "9090"),
	}

	if origins := getEnv("DOCSEARCH_CORS_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	return cfg
}

// loadSearchConfig loads search pipeline configuration from environment
func loadSearchConfig() SearchConfig {
	return SearchConfig{
		Enabled:      getEnvBool("DOCSEARCH_SEARCH_ENABLED", true),
		IndexPath:    getEnv("DOCSEARCH_INDEX_PATH", "/var/lib/docsearch/index.bleve"),
		Workers:      getEnvInt("DOCSEARCH_INDEX_WORKERS", 4),
		QueueSize:    getEnvInt("DOCSEARCH_INDEX_QUEUE_SIZE", 256),
		PageSize:     getEnvInt("DOCSEARCH_BULK_PAGE_SIZE", 50),
		TaskTimeout:  getEnvDuration("DOCSEARCH_INDEX_TASK_TIMEOUT", 30*time.Second),
		BulkSchedule: getEnv("DOCSEARCH_BULK_SCHEDULE", "0 3 * * *"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("DOCSEARCH_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("DOCSEARCH_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("DOCSEARCH_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("DOCSEARCH_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	if maxLifetime := getEnvDuration("DOCSEARCH_POSTGRES_MAX_LIFETIME", 0); maxLifetime > 0 {
		cfg.PostgresMaxLifetime = maxLifetime
	}

	// S3 config
	if s3Endpoint := getEnv("DOCSEARCH_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("DOCSEARCH_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("DOCSEARCH_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("DOCSEARCH_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("DOCSEARCH_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("DOCSEARCH_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	// Redis config
	if redisURL := getEnv("DOCSEARCH_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("DOCSEARCH_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("DOCSEARCH_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if cacheTTL := getEnvDuration("DOCSEARCH_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.CacheTTL = cacheTTL
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("DOCSEARCH_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DOCSEARCH_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DOCSEARCH_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DOCSEARCH_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DOCSEARCH_OTEL_SERVICE_NAME", "docsearch"),
		OTelServiceVersion: getEnv("DOCSEARCH_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DOCSEARCH_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.S3Endpoint == "" || c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 endpoint and bucket are required")
	}

	// Validate search config
	if c.Search.Enabled {
		if c.Search.IndexPath == "" {
			return fmt.Errorf("index path is required when search is enabled")
		}
		if c.Search.Workers <= 0 {
			return fmt.Errorf("index workers must be positive")
		}
		if c.Search.QueueSize <= 0 {
			return fmt.Errorf("index queue size must be positive")
		}
		if c.Search.PageSize <= 0 {
			return fmt.Errorf("bulk page size must be positive")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
