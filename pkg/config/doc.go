// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	DOCSEARCH_HOST="0.0.0.0"
//	DOCSEARCH_PORT="8080"
//	DOCSEARCH_HEALTH_PORT="9090"
//	DOCSEARCH_READ_TIMEOUT="15s"
//	DOCSEARCH_WRITE_TIMEOUT="15s"
//	DOCSEARCH_CORS_ORIGINS="https://app.example.com,https://staging.example.com"
//
// Search settings:
//
//	DOCSEARCH_SEARCH_ENABLED="true"
//	DOCSEARCH_INDEX_PATH="/var/lib/docsearch/index.bleve"
//	DOCSEARCH_INDEX_WORKERS="4"
//	DOCSEARCH_BULK_PAGE_SIZE="50"
//	DOCSEARCH_BULK_SCHEDULE="0 3 * * *"
//
// Storage settings:
//
//	DOCSEARCH_POSTGRES_URL="postgres://localhost/docsearch"
//	DOCSEARCH_POSTGRES_MAX_CONNS="20"
//	DOCSEARCH_S3_ENDPOINT="http://localhost:9000"
//	DOCSEARCH_S3_BUCKET="documents"
//	DOCSEARCH_S3_REGION="us-east-1"
//	DOCSEARCH_REDIS_URL="redis://localhost:6379"
//	DOCSEARCH_CACHE_TTL="5m"
//
// Observability settings:
//
//	DOCSEARCH_LOG_LEVEL="info"  # debug, info, warn, error
//	DOCSEARCH_METRICS_ENABLED="true"
//	DOCSEARCH_OTEL_ENABLED="true"
//	DOCSEARCH_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Index: %s\n", cfg.Search.IndexPath)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
