package search

import (
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/quillstack/docsearch/pkg/documents"
	"github.com/quillstack/docsearch/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func float64Ptr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }

// publishedSnapshot builds a fully associated published document.
func publishedSnapshot(id int64) *documents.Snapshot {
	createdAt := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return &documents.Snapshot{
		ID:          id,
		Title:       "Linear Algebra Lecture Notes",
		Description: "Vector spaces, eigenvalues and matrix decompositions",

		FileName:     "linear-algebra.pdf",
		FileType:     "pdf",
		FileSize:     204800,
		ObjectKey:    "documents/linear-algebra.pdf",
		ThumbnailURL: "https://cdn.example.com/thumbs/1.png",

		Author:   &documents.Author{ID: 7, Name: "Ada Lovelace", Username: "ada"},
		Folder:   &documents.Folder{ID: 3, Name: "Mathematics"},
		Tags:     []string{"algebra", "matrices"},
		Subjects: []documents.Subject{{ID: 11, Name: "Mathematics"}},

		Status:     documents.StatusPublished,
		Visibility: documents.VisibilityPublic,
		IsFeatured: true,
		Language:   "en",

		ViewCount:      120,
		DownloadCount:  45,
		FavouriteCount: 9,
		RatingAverage:  float64Ptr(4.5),
		RatingCount:    12,

		CreatedAt: createdAt,
		UpdatedAt: createdAt.Add(48 * time.Hour),
	}
}
