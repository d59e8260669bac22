package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack/docsearch/pkg/documents"
)

type fakeDocumentSource struct {
	snapshots map[int64]*documents.Snapshot
	pageErr   error
}

func (f *fakeDocumentSource) Snapshot(ctx context.Context, id int64) (*documents.Snapshot, error) {
	return f.snapshots[id], nil
}

func (f *fakeDocumentSource) PublishedPage(ctx context.Context, offset, limit int) ([]*documents.Snapshot, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	published := make([]*documents.Snapshot, 0, len(f.snapshots))
	for id := int64(1); id <= int64(len(f.snapshots)); id++ {
		if snap := f.snapshots[id]; snap.Indexable() {
			published = append(published, snap)
		}
	}
	if offset >= len(published) {
		return nil, nil
	}
	end := offset + limit
	if end > len(published) {
		end = len(published)
	}
	return published[offset:end], nil
}

func (f *fakeDocumentSource) PublishedByAuthor(ctx context.Context, authorID int64) ([]*documents.Snapshot, error) {
	var out []*documents.Snapshot
	for id := int64(1); id <= int64(len(f.snapshots)); id++ {
		snap := f.snapshots[id]
		if snap.Indexable() && snap.Author != nil && snap.Author.ID == authorID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, docs DocumentSource) (*Pipeline, *Index) {
	t.Helper()
	idx := newTestIndex(t)
	p := NewPipeline(idx, docs, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{Workers: 1, QueueSize: 8})
	t.Cleanup(p.Close)
	return p, idx
}

func TestPipelineIndexDocument(t *testing.T) {
	p, idx := newTestPipeline(t, &fakeDocumentSource{})
	ctx := context.Background()

	outcome := p.IndexDocument(ctx, publishedSnapshot(1))
	assert.Equal(t, OutcomeIndexed, outcome)

	got, err := idx.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Linear Algebra Lecture Notes", got.Title)
}

func TestPipelineSkipsUnpublished(t *testing.T) {
	p, idx := newTestPipeline(t, &fakeDocumentSource{})
	ctx := context.Background()

	draft := publishedSnapshot(1)
	draft.Status = documents.StatusDraft

	assert.Equal(t, OutcomeSkipped, p.IndexDocument(ctx, draft))

	got, err := idx.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineUpdateRemovesUnpublishable(t *testing.T) {
	p, idx := newTestPipeline(t, &fakeDocumentSource{})
	ctx := context.Background()

	// DRAFT -> PUBLISHED -> ARCHIVED: the index entry must exist exactly
	// while the document is published.
	snap := publishedSnapshot(1)
	snap.Status = documents.StatusDraft
	assert.Equal(t, OutcomeSkipped, p.IndexDocument(ctx, snap))

	snap.Status = documents.StatusPublished
	assert.Equal(t, OutcomeIndexed, p.UpdateIndex(ctx, snap))
	got, err := idx.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	snap.Status = documents.StatusArchived
	assert.Equal(t, OutcomeDeleted, p.UpdateIndex(ctx, snap))
	got, err = idx.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineSoftDeleteRemoves(t *testing.T) {
	p, idx := newTestPipeline(t, &fakeDocumentSource{})
	ctx := context.Background()

	snap := publishedSnapshot(1)
	require.Equal(t, OutcomeIndexed, p.IndexDocument(ctx, snap))

	deletedAt := time.Now()
	snap.DeletedAt = &deletedAt
	assert.Equal(t, OutcomeDeleted, p.UpdateIndex(ctx, snap))

	got, err := idx.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineDisabled(t *testing.T) {
	p := NewPipeline(nil, &fakeDocumentSource{}, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{})
	defer p.Close()
	ctx := context.Background()

	assert.False(t, p.Enabled())
	assert.Equal(t, OutcomeSkipped, p.IndexDocument(ctx, publishedSnapshot(1)))
	assert.Equal(t, OutcomeSkipped, p.DeleteFromIndex(ctx, 1))

	stats, err := p.BulkIndexAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Indexed)

	// Async submits on a disabled pipeline must not block or panic.
	p.IndexDocumentAsync(publishedSnapshot(1))
	p.DeleteFromIndexAsync(1)
}

func TestPipelineAsync(t *testing.T) {
	p, idx := newTestPipeline(t, &fakeDocumentSource{})
	ctx := context.Background()

	p.IndexDocumentAsync(publishedSnapshot(1))
	p.UpdateIndexAsync(publishedSnapshot(2))
	p.Close()

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestBulkIndexAll(t *testing.T) {
	snaps := make(map[int64]*documents.Snapshot)
	for id := int64(1); id <= 7; id++ {
		snaps[id] = publishedSnapshot(id)
	}
	snaps[3].Status = documents.StatusDraft

	docs := &fakeDocumentSource{snapshots: snaps}
	idx := newTestIndex(t)
	p := NewPipeline(idx, docs, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{Workers: 1, QueueSize: 8, PageSize: 2})
	defer p.Close()

	ctx := context.Background()
	stats, err := p.BulkIndexAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Indexed)
	assert.Zero(t, stats.Failed)
	assert.False(t, stats.RanAt.IsZero())

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), count)

	last, ok := p.LastBulk()
	require.True(t, ok)
	assert.Equal(t, 6, last.Indexed)
}

// hookedDocumentSource runs a callback after serving each page, letting a
// test break the index mid-run.
type hookedDocumentSource struct {
	fakeDocumentSource
	afterPage func(offset int)
}

func (h *hookedDocumentSource) PublishedPage(ctx context.Context, offset, limit int) ([]*documents.Snapshot, error) {
	page, err := h.fakeDocumentSource.PublishedPage(ctx, offset, limit)
	if h.afterPage != nil {
		h.afterPage(offset)
	}
	return page, err
}

func TestBulkIndexAllContinuesPastFailures(t *testing.T) {
	snaps := make(map[int64]*documents.Snapshot)
	for id := int64(1); id <= 5; id++ {
		snaps[id] = publishedSnapshot(id)
	}

	idx, err := NewMemoryIndex()
	require.NoError(t, err)

	// Close the index once the second page is fetched, so the first page
	// indexes cleanly and every later upsert fails.
	docs := &hookedDocumentSource{fakeDocumentSource: fakeDocumentSource{snapshots: snaps}}
	docs.afterPage = func(offset int) {
		if offset == 2 {
			require.NoError(t, idx.Close())
		}
	}

	p := NewPipeline(idx, docs, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{Workers: 1, QueueSize: 8, PageSize: 2})
	defer p.Close()

	stats, err := p.BulkIndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 3, stats.Failed, "write failures are counted, not fatal")
}

func TestBulkIndexAllPageError(t *testing.T) {
	docs := &fakeDocumentSource{pageErr: errors.New("database gone")}
	p, _ := newTestPipeline(t, docs)

	_, err := p.BulkIndexAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database gone")

	_, ok := p.LastBulk()
	assert.False(t, ok)
}

func TestReindexByAuthor(t *testing.T) {
	snaps := map[int64]*documents.Snapshot{
		1: publishedSnapshot(1),
		2: publishedSnapshot(2),
		3: publishedSnapshot(3),
	}
	snaps[2].Author = &documents.Author{ID: 99, Name: "Other", Username: "other"}

	p, idx := newTestPipeline(t, &fakeDocumentSource{snapshots: snaps})
	ctx := context.Background()

	stats, err := p.ReindexByAuthor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestReindexDocument(t *testing.T) {
	snaps := map[int64]*documents.Snapshot{1: publishedSnapshot(1)}
	p, idx := newTestPipeline(t, &fakeDocumentSource{snapshots: snaps})
	ctx := context.Background()

	outcome, err := p.ReindexDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)

	// A document missing from the store is removed from the index.
	require.NoError(t, idx.Upsert(ctx, recordFixture(5)))
	outcome, err = p.ReindexDocument(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)

	got, err := idx.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}
