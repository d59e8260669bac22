// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry setup, and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("document_id", id).Info("Document indexed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.IndexOperationsTotal.WithLabelValues("index", "indexed").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, index.Count)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
