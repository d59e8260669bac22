package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/quillstack/docsearch/pkg/config"
	"github.com/quillstack/docsearch/pkg/extract"
	"github.com/quillstack/docsearch/pkg/observability"
	"github.com/quillstack/docsearch/pkg/search"
	"github.com/quillstack/docsearch/pkg/storage/postgres"
)

// Maintenance tool that rebuilds the search index outside the server
// process: the whole corpus, one author, or one document.
func main() {
	var (
		indexPath  = flag.String("index-path", "", "Search index path (default: DOCSEARCH_INDEX_PATH)")
		authorID   = flag.Int64("author", 0, "Reindex only the documents of this author")
		documentID = flag.Int64("document", 0, "Reindex a single document")
		skipText   = flag.Bool("skip-text", false, "Skip content extraction from object storage")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	logger := setupLogger(*logLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if *indexPath != "" {
		cfg.Search.IndexPath = *indexPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	index, err := search.NewIndex(cfg.Search.IndexPath)
	if err != nil {
		logger.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	appLogger := observability.NewLogger(parseAppLogLevel(*logLevel), os.Stdout)

	var extractor search.TextExtractor
	if !*skipText {
		objects, err := postgres.NewObjectStore(ctx, cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to configure object storage: %v", err)
		}
		extractor = extract.NewExtractor(objects, appLogger, metrics)
	} else {
		logger.Info("Content extraction disabled, indexing metadata only")
	}

	pipeline := search.NewPipeline(index, postgres.NewDocumentStore(db), search.NewMapper(extractor), appLogger, metrics, search.PipelineConfig{
		PageSize: cfg.Search.PageSize,
	})
	defer pipeline.Close()

	start := time.Now()

	switch {
	case *documentID > 0:
		outcome, err := pipeline.ReindexDocument(ctx, *documentID)
		if err != nil {
			logger.Fatalf("Failed to reindex document %d: %v", *documentID, err)
		}
		logger.Infof("Document %d: %s", *documentID, outcome)

	case *authorID > 0:
		logger.Infof("Reindexing documents of author %d", *authorID)
		stats, err := pipeline.ReindexByAuthor(ctx, *authorID)
		if err != nil {
			logger.Fatalf("Author reindex failed: %v", err)
		}
		logger.Infof("Indexed %d documents, %d failed in %v", stats.Indexed, stats.Failed, stats.Duration)

	default:
		logger.Info("Reindexing all published documents")
		stats, err := pipeline.BulkIndexAll(ctx)
		if err != nil {
			logger.Fatalf("Bulk reindex failed: %v", err)
		}
		logger.Infof("Indexed %d documents, %d failed in %v", stats.Indexed, stats.Failed, stats.Duration)
	}

	count, err := index.Count(ctx)
	if err == nil {
		logger.Infof("Index now holds %d documents (run took %v)", count, time.Since(start))
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func parseAppLogLevel(logLevel string) observability.LogLevel {
	switch logLevel {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}
