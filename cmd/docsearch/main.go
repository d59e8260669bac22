package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quillstack/docsearch/pkg/config"
	"github.com/quillstack/docsearch/pkg/extract"
	"github.com/quillstack/docsearch/pkg/httputil"
	"github.com/quillstack/docsearch/pkg/observability"
	"github.com/quillstack/docsearch/pkg/search"
	"github.com/quillstack/docsearch/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx := context.Background()
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	docStore := postgres.NewDocumentStore(db)

	redisClient, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, suggestion caching runs local-only")
		redisClient = nil
	}

	objects, err := postgres.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to configure object storage")
		os.Exit(1)
	}
	extractor := extract.NewExtractor(objects, logger, metrics)

	var index *search.Index
	if cfg.Search.Enabled {
		index, err = search.NewIndex(cfg.Search.IndexPath)
		if err != nil {
			logger.WithError(err).Error("Failed to open search index")
			os.Exit(1)
		}
		logger.Infof("Search index opened at %s", cfg.Search.IndexPath)
	}

	pipeline := search.NewPipeline(index, docStore, search.NewMapper(extractor), logger, metrics, search.PipelineConfig{
		Workers:     cfg.Search.Workers,
		QueueSize:   cfg.Search.QueueSize,
		PageSize:    cfg.Search.PageSize,
		TaskTimeout: cfg.Search.TaskTimeout,
	})

	var suggestions *search.SuggestionCache
	if index != nil {
		suggestions, err = search.NewSuggestionCache(redisClient, cfg.Storage.CacheTTL, logger, metrics)
		if err != nil {
			logger.WithError(err).Error("Failed to create suggestion cache")
			os.Exit(1)
		}
	}

	service := search.NewService(index, suggestions, logger, metrics)
	handlers := search.NewHandlers(service, pipeline, logger)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	middleware := []httputil.Middleware{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
		httputil.RecoveryMiddleware(logger),
	}
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		middleware = append(middleware, httputil.CORSMiddleware(cfg.Server.CORSAllowedOrigins))
	}

	var handler http.Handler = httputil.Chain(middleware...)(router)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "docsearch")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scraping.
	var indexProbe observability.IndexProbe
	if index != nil {
		indexProbe = index.Count
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, indexProbe))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go monitorGauges(db, index, metrics)

	var scheduler *cron.Cron
	if pipeline.Enabled() && cfg.Search.BulkSchedule != "" {
		scheduler = cron.New()
		_, err = scheduler.AddFunc(cfg.Search.BulkSchedule, func() {
			logger.Info("Starting scheduled bulk index run")
			if _, err := pipeline.BulkIndexAll(context.Background()); err != nil {
				logger.WithError(err).Error("Scheduled bulk index run failed")
				return
			}
			if suggestions != nil {
				suggestions.Purge()
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("Invalid bulk schedule %q", cfg.Search.BulkSchedule)
			os.Exit(1)
		}
		scheduler.Start()
		logger.Infof("Bulk index schedule: %s", cfg.Search.BulkSchedule)
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		pipeline.Close()
		return nil
	})
	if scheduler != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		})
	}
	if index != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return index.Close()
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Document search API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health and metrics listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdownContext(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

// monitorGauges refreshes the connection pool and index size gauges.
func monitorGauges(db *sql.DB, index *search.Index, metrics *observability.Metrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))

		if index != nil {
			if count, err := index.Count(context.Background()); err == nil {
				metrics.IndexedDocumentsTotal.Set(float64(count))
			}
		}
	}
}
