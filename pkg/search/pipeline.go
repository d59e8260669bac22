package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quillstack/docsearch/pkg/documents"
	"github.com/quillstack/docsearch/pkg/observability"
)

var pipelineTracer = otel.Tracer("docsearch.search.pipeline")

// Outcome classifies the result of one index write.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// DocumentSource reads document snapshots from the primary store.
type DocumentSource interface {
	Snapshot(ctx context.Context, id int64) (*documents.Snapshot, error)
	PublishedPage(ctx context.Context, offset, limit int) ([]*documents.Snapshot, error)
	PublishedByAuthor(ctx context.Context, authorID int64) ([]*documents.Snapshot, error)
}

// BulkStats summarizes one bulk indexing run.
type BulkStats struct {
	Indexed  int
	Failed   int
	Duration time.Duration
	RanAt    time.Time
}

// PipelineConfig sizes the asynchronous part of the pipeline.
type PipelineConfig struct {
	Workers   int
	QueueSize int
	// PageSize is how many documents each bulk page loads.
	PageSize int
	// TaskTimeout bounds a single asynchronous index task.
	TaskTimeout time.Duration
}

// DefaultPipelineConfig returns the standard pipeline sizing.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:     4,
		QueueSize:   256,
		PageSize:    50,
		TaskTimeout: 30 * time.Second,
	}
}

type taskKind int

const (
	taskApply taskKind = iota
	taskDelete
)

type indexTask struct {
	kind      taskKind
	operation string
	snap      *documents.Snapshot
	id        int64
}

// Pipeline applies document changes to the search index. A pipeline built
// without an index is disabled: every operation is a cheap no-op, so
// callers never need to check whether search is configured.
type Pipeline struct {
	index   *Index
	docs    DocumentSource
	mapper  *Mapper
	logger  *observability.Logger
	metrics *observability.Metrics
	cfg     PipelineConfig

	tasks chan indexTask
	wg    sync.WaitGroup

	mu        sync.Mutex
	lastBulk  *BulkStats
	closeOnce sync.Once
}

// NewPipeline creates the pipeline and starts its workers. Pass a nil
// index to disable indexing entirely.
func NewPipeline(index *Index, docs DocumentSource, mapper *Mapper, logger *observability.Logger, metrics *observability.Metrics, cfg PipelineConfig) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPipelineConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultPipelineConfig().QueueSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPipelineConfig().PageSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultPipelineConfig().TaskTimeout
	}

	p := &Pipeline{
		index:   index,
		docs:    docs,
		mapper:  mapper,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}

	if index == nil {
		logger.Info("Search indexing is disabled, pipeline running as no-op")
		return p
	}

	p.tasks = make(chan indexTask, cfg.QueueSize)
	for w := 0; w < cfg.Workers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
	return p
}

// Enabled reports whether an index is configured.
func (p *Pipeline) Enabled() bool {
	return p.index != nil
}

// Close drains the async queue and stops the workers.
func (p *Pipeline) Close() {
	if p.tasks == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	logger := p.logger.WithField("worker", id)

	for task := range p.tasks {
		p.metrics.IndexQueueDepth.Set(float64(len(p.tasks)))
		p.runTask(logger, task)
	}
}

func (p *Pipeline) runTask(logger *observability.Logger, task indexTask) {
	defer observability.RecoverPanic(logger, "index worker")

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.TaskTimeout)
	defer cancel()

	switch task.kind {
	case taskApply:
		p.apply(ctx, task.operation, task.snap)
	case taskDelete:
		p.delete(ctx, task.id)
	}
}

func (p *Pipeline) submit(task indexTask) {
	if p.tasks == nil {
		return
	}
	p.tasks <- task
	p.metrics.IndexQueueDepth.Set(float64(len(p.tasks)))
}

// IndexDocumentAsync queues a freshly published document for indexing.
// Completion is observable through logs and metrics only.
func (p *Pipeline) IndexDocumentAsync(snap *documents.Snapshot) {
	p.submit(indexTask{kind: taskApply, operation: "index", snap: snap})
}

// UpdateIndexAsync queues a changed document. Documents that are no longer
// published are removed from the index.
func (p *Pipeline) UpdateIndexAsync(snap *documents.Snapshot) {
	p.submit(indexTask{kind: taskApply, operation: "update", snap: snap})
}

// DeleteFromIndexAsync queues an index removal.
func (p *Pipeline) DeleteFromIndexAsync(id int64) {
	p.submit(indexTask{kind: taskDelete, id: id})
}

// IndexDocument synchronously indexes one document if it is publishable.
func (p *Pipeline) IndexDocument(ctx context.Context, snap *documents.Snapshot) Outcome {
	return p.apply(ctx, "index", snap)
}

// UpdateIndex synchronously reconciles the index entry for one document:
// published documents are upserted, everything else is removed.
func (p *Pipeline) UpdateIndex(ctx context.Context, snap *documents.Snapshot) Outcome {
	return p.apply(ctx, "update", snap)
}

// DeleteFromIndex synchronously removes one document from the index.
func (p *Pipeline) DeleteFromIndex(ctx context.Context, id int64) Outcome {
	return p.delete(ctx, id)
}

// apply enforces the core invariant: a record exists in the index exactly
// when the document is published and not soft-deleted. Write failures are
// absorbed; indexing never propagates errors to the caller.
func (p *Pipeline) apply(ctx context.Context, operation string, snap *documents.Snapshot) Outcome {
	if p.index == nil || snap == nil {
		return OutcomeSkipped
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline."+operation)
	defer span.End()
	span.SetAttributes(attribute.Int64("document.id", snap.ID))

	start := time.Now()
	outcome := p.applyLocked(ctx, operation, snap)
	p.metrics.IndexDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	p.metrics.IndexOperationsTotal.WithLabelValues(operation, string(outcome)).Inc()
	span.SetAttributes(attribute.String("index.outcome", string(outcome)))
	return outcome
}

func (p *Pipeline) applyLocked(ctx context.Context, operation string, snap *documents.Snapshot) Outcome {
	logger := p.logger.WithField("document_id", snap.ID).WithField("operation", operation)

	if !snap.Indexable() {
		// An update to an unpublished or soft-deleted document must erase
		// any stale index entry.
		if err := p.index.Delete(ctx, snap.ID); err != nil {
			logger.WithError(err).Error("Failed to remove unpublishable document from index")
			return OutcomeFailed
		}
		if operation == "index" {
			logger.Debug("Skipped indexing unpublished document")
			return OutcomeSkipped
		}
		return OutcomeDeleted
	}

	rec := p.mapper.ToSearchRecord(ctx, snap)
	if err := p.index.Upsert(ctx, rec); err != nil {
		logger.WithError(err).Error("Failed to write document to index")
		return OutcomeFailed
	}

	logger.Debug("Document indexed")
	return OutcomeIndexed
}

func (p *Pipeline) delete(ctx context.Context, id int64) Outcome {
	if p.index == nil {
		return OutcomeSkipped
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline.delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("document.id", id))

	outcome := OutcomeDeleted
	if err := p.index.Delete(ctx, id); err != nil {
		p.logger.WithError(err).WithField("document_id", id).Error("Failed to delete document from index")
		outcome = OutcomeFailed
	}
	p.metrics.IndexOperationsTotal.WithLabelValues("delete", string(outcome)).Inc()
	return outcome
}

// BulkIndexAll walks every published document in pages and indexes each
// one. A failing document is counted and skipped, never aborting the run;
// only a failing page read stops it.
func (p *Pipeline) BulkIndexAll(ctx context.Context) (BulkStats, error) {
	if p.index == nil {
		return BulkStats{}, nil
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline.bulk_index_all")
	defer span.End()

	start := time.Now()
	stats := BulkStats{RanAt: start.UTC()}

	for offset := 0; ; offset += p.cfg.PageSize {
		page, err := p.docs.PublishedPage(ctx, offset, p.cfg.PageSize)
		if err != nil {
			span.RecordError(err)
			return stats, fmt.Errorf("failed to load documents page at offset %d: %w", offset, err)
		}

		p.indexPage(ctx, page, &stats)

		if len(page) < p.cfg.PageSize {
			break
		}
	}

	stats.Duration = time.Since(start)
	p.metrics.BulkIndexedTotal.Add(float64(stats.Indexed))
	p.metrics.BulkFailedTotal.Add(float64(stats.Failed))
	span.SetAttributes(
		attribute.Int("bulk.indexed", stats.Indexed),
		attribute.Int("bulk.failed", stats.Failed),
	)

	p.mu.Lock()
	p.lastBulk = &stats
	p.mu.Unlock()

	p.logger.WithFields(map[string]interface{}{
		"indexed":     stats.Indexed,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}).Info("Bulk index run finished")

	return stats, nil
}

// ReindexByAuthor re-indexes every published document of one author.
func (p *Pipeline) ReindexByAuthor(ctx context.Context, authorID int64) (BulkStats, error) {
	if p.index == nil {
		return BulkStats{}, nil
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline.reindex_by_author")
	defer span.End()
	span.SetAttributes(attribute.Int64("author.id", authorID))

	start := time.Now()
	stats := BulkStats{RanAt: start.UTC()}

	snaps, err := p.docs.PublishedByAuthor(ctx, authorID)
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("failed to load documents for author %d: %w", authorID, err)
	}

	p.indexPage(ctx, snaps, &stats)
	stats.Duration = time.Since(start)
	return stats, nil
}

func (p *Pipeline) indexPage(ctx context.Context, page []*documents.Snapshot, stats *BulkStats) {
	for _, snap := range page {
		switch p.apply(ctx, "bulk", snap) {
		case OutcomeFailed:
			stats.Failed++
		case OutcomeIndexed:
			stats.Indexed++
		}
	}
}

// ReindexDocument loads one document from the primary store and reconciles
// its index entry. A missing document is removed from the index.
func (p *Pipeline) ReindexDocument(ctx context.Context, id int64) (Outcome, error) {
	if p.index == nil {
		return OutcomeSkipped, nil
	}

	snap, err := p.docs.Snapshot(ctx, id)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to load document %d: %w", id, err)
	}
	if snap == nil {
		return p.delete(ctx, id), nil
	}
	return p.apply(ctx, "update", snap), nil
}

// LastBulk returns the stats of the most recent bulk run, if any.
func (p *Pipeline) LastBulk() (BulkStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastBulk == nil {
		return BulkStats{}, false
	}
	return *p.lastBulk, true
}
