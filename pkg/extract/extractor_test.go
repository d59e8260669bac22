package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack/docsearch/pkg/observability"
)

type fakeFetcher struct {
	objects map[string][]byte
	err     error
	gotKey  string
}

func (f *fakeFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.gotKey = key
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func TestExtractTextHappyPath(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string][]byte{
		"docs/notes.md": []byte("# Title\n\nBody text."),
	}}
	extractor := NewExtractor(fetcher, testLogger(), testMetrics())

	text, ok := extractor.ExtractText(context.Background(), "docs/notes.md", "notes.md")
	require.True(t, ok)
	assert.Contains(t, text, "Body text.")
	assert.NotContains(t, text, "#")
}

func TestExtractTextDecodesObjectKey(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string][]byte{
		"docs/my notes.txt": []byte("hello"),
	}}
	extractor := NewExtractor(fetcher, testLogger(), testMetrics())

	text, ok := extractor.ExtractText(context.Background(), "docs%2Fmy+notes.txt", "my notes.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "docs/my notes.txt", fetcher.gotKey)
}

func TestExtractTextFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("bucket unavailable")}
	extractor := NewExtractor(fetcher, testLogger(), testMetrics())

	text, ok := extractor.ExtractText(context.Background(), "docs/missing.pdf", "missing.pdf")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestExtractTextTruncationIsSuccess(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string][]byte{
		"docs/big.txt": []byte(strings.Repeat("x", MaxTextLength*2)),
	}}
	extractor := NewExtractor(fetcher, testLogger(), testMetrics())

	text, ok := extractor.ExtractText(context.Background(), "docs/big.txt", "big.txt")
	require.True(t, ok)
	assert.Len(t, text, MaxTextLength)
}

func TestExtractTextFallsBackToKeyForParser(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string][]byte{
		"docs/page.html": []byte("<p>visible</p>"),
	}}
	extractor := NewExtractor(fetcher, testLogger(), testMetrics())

	text, ok := extractor.ExtractText(context.Background(), "docs/page.html", "")
	require.True(t, ok)
	assert.Equal(t, "visible", text)
}
