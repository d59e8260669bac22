//go:build integration

package integration

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillstack/docsearch/pkg/observability"
	"github.com/quillstack/docsearch/pkg/search"
	"github.com/quillstack/docsearch/pkg/storage/postgres"
)

const schema = `
CREATE TABLE users (
	id BIGSERIAL PRIMARY KEY,
	full_name TEXT NOT NULL,
	username TEXT NOT NULL
);

CREATE TABLE folders (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE subjects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE documents (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	object_key TEXT NOT NULL,
	thumbnail_url TEXT,
	author_id BIGINT NOT NULL REFERENCES users(id),
	folder_id BIGINT REFERENCES folders(id),
	status TEXT NOT NULL,
	visibility TEXT NOT NULL,
	is_featured BOOLEAN NOT NULL DEFAULT FALSE,
	language TEXT NOT NULL DEFAULT 'en',
	view_count BIGINT NOT NULL DEFAULT 0,
	download_count BIGINT NOT NULL DEFAULT 0,
	favourite_count BIGINT NOT NULL DEFAULT 0,
	rating_average DOUBLE PRECISION,
	rating_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at TIMESTAMPTZ
);

CREATE TABLE document_tags (
	document_id BIGINT NOT NULL REFERENCES documents(id),
	tag TEXT NOT NULL
);

CREATE TABLE document_subjects (
	document_id BIGINT NOT NULL REFERENCES documents(id),
	subject_id BIGINT NOT NULL REFERENCES subjects(id)
);
`

const seed = `
INSERT INTO users (full_name, username) VALUES ('Ada Lovelace', 'ada'), ('Grace Hopper', 'grace');
INSERT INTO folders (name) VALUES ('Mathematics');
INSERT INTO subjects (name) VALUES ('Mathematics'), ('Computer Science');

INSERT INTO documents (title, description, file_name, file_type, file_size, object_key, author_id, folder_id, status, visibility, is_featured, rating_average, rating_count)
VALUES
	('Linear Algebra Lecture Notes', 'Vector spaces and eigenvalues', 'linear.pdf', 'pdf', 1024, 'docs/linear.pdf', 1, 1, 'PUBLISHED', 'PUBLIC', TRUE, 4.5, 12),
	('Compiler Construction', 'Parsing and code generation', 'compilers.pdf', 'pdf', 2048, 'docs/compilers.pdf', 2, NULL, 'PUBLISHED', 'PUBLIC', FALSE, NULL, 0),
	('Unfinished Draft', 'Not published yet', 'draft.md', 'md', 10, 'docs/draft.md', 1, NULL, 'DRAFT', 'PRIVATE', FALSE, NULL, 0);

INSERT INTO document_tags (document_id, tag) VALUES (1, 'algebra'), (1, 'matrices'), (2, 'compilers');
INSERT INTO document_subjects (document_id, subject_id) VALUES (1, 1), (2, 2);
`

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("docsearch_test"),
		tcpostgres.WithUsername("docsearch"),
		tcpostgres.WithPassword("docsearch_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	_, err = db.Exec(schema)
	require.NoError(t, err)
	_, err = db.Exec(seed)
	require.NoError(t, err)

	return db
}

// TestFullIndexingRoundTrip loads documents from a real PostgreSQL, bulk
// indexes them, and queries them back through the search service.
func TestFullIndexingRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	index, err := search.NewMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	store := postgres.NewDocumentStore(db)
	pipeline := search.NewPipeline(index, store, search.NewMapper(nil), logger, metrics, search.PipelineConfig{PageSize: 2})
	defer pipeline.Close()

	stats, err := pipeline.BulkIndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed, "only published documents are indexed")
	assert.Zero(t, stats.Failed)

	svc := search.NewService(index, nil, logger, metrics)

	res, err := svc.Search(ctx, &search.SearchRequest{Query: "eigenvalues"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	hit := res.Results[0]
	assert.Equal(t, "Linear Algebra Lecture Notes", hit.Title)
	assert.Equal(t, "ada", hit.AuthorUsername)
	assert.Equal(t, "Mathematics", hit.FolderName)
	assert.ElementsMatch(t, []string{"algebra", "matrices"}, hit.Tags)
	require.NotNil(t, hit.RatingAverage)
	assert.Equal(t, 4.5, *hit.RatingAverage)

	// The draft must not be searchable.
	res, err = svc.Search(ctx, &search.SearchRequest{Query: "unfinished draft"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	// Soft-deleting a published document and reindexing removes it.
	_, err = db.Exec(`UPDATE documents SET deleted_at = NOW() WHERE id = 2`)
	require.NoError(t, err)

	outcome, err := pipeline.ReindexDocument(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, search.OutcomeDeleted, outcome)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

// TestReindexByAuthorIntegration verifies author-scoped reindexing against
// real SQL.
func TestReindexByAuthorIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	index, err := search.NewMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	pipeline := search.NewPipeline(index, postgres.NewDocumentStore(db), search.NewMapper(nil), logger, metrics, search.PipelineConfig{})
	defer pipeline.Close()

	stats, err := pipeline.ReindexByAuthor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed, "author 1 has one published document")

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
