package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack/docsearch/pkg/documents"
)

func newTestServer(t *testing.T, snaps map[int64]*documents.Snapshot) (*httptest.Server, *Pipeline) {
	t.Helper()

	idx := newTestIndex(t)
	docs := &fakeDocumentSource{snapshots: snaps}
	p := NewPipeline(idx, docs, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{Workers: 1, QueueSize: 8})
	t.Cleanup(p.Close)

	svc := NewService(idx, nil, testLogger(), testMetrics())
	handlers := NewHandlers(svc, p, testLogger())

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, p
}

func TestSearchDocumentsEndpoint(t *testing.T) {
	server, p := newTestServer(t, nil)
	seedDocuments(t, p, publishedSnapshot(1))

	body := `{"query":"linear algebra"}`
	resp, err := http.Post(server.URL+"/api/search/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var page SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, int64(1), page.TotalHits)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Linear Algebra Lecture Notes", page.Results[0].Title)
}

func TestSearchDocumentsAcceptsDocumentedRequestShape(t *testing.T) {
	server, p := newTestServer(t, nil)
	seedDocuments(t, p, publishedSnapshot(1))

	// Every field name the API documents, in one body. Unknown fields are
	// rejected, so a name drift here surfaces as a 400.
	body := `{"query":"linear algebra","sortOrder":"DESC","highlightResults":true,"dateFrom":"2024-01-01T00:00:00Z"}`
	resp, err := http.Post(server.URL+"/api/search/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var page SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Results, 1)
	assert.NotEmpty(t, page.Results[0].Highlights)
}

func TestSearchDocumentsBadBody(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Post(server.URL+"/api/search/documents", "application/json", strings.NewReader("{oops"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutocompleteEndpoint(t *testing.T) {
	server, p := newTestServer(t, nil)
	seedDocuments(t, p, publishedSnapshot(1))

	resp, err := http.Get(server.URL + "/api/search/autocomplete?q=linear")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"Linear Algebra Lecture Notes"}, body.Suggestions)
}

func TestFindSimilarEndpoint(t *testing.T) {
	server, p := newTestServer(t, nil)

	seed := publishedSnapshot(1)
	related := publishedSnapshot(2)
	related.Title = "Matrix Decompositions in Practice"
	seedDocuments(t, p, seed, related)

	resp, err := http.Get(server.URL + "/api/search/similar/1?limit=3")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		DocumentID int64          `json:"documentId"`
		Similar    []SearchResult `json:"similar"`
		Count      int            `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(1), body.DocumentID)
	require.NotEmpty(t, body.Similar)
	assert.Equal(t, int64(2), body.Similar[0].ID)
	assert.Equal(t, len(body.Similar), body.Count)
}

func TestFindSimilarRejectsNonNumericID(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/search/similar/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The route pattern only admits numeric ids.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReindexDocumentEndpoint(t *testing.T) {
	snaps := map[int64]*documents.Snapshot{1: publishedSnapshot(1)}
	server, _ := newTestServer(t, snaps)

	resp, err := http.Post(server.URL+"/api/search/admin/reindex/1", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(OutcomeIndexed), body["outcome"])
}

func TestReindexEndpoint(t *testing.T) {
	snaps := map[int64]*documents.Snapshot{1: publishedSnapshot(1)}
	server, p := newTestServer(t, snaps)

	resp, err := http.Post(server.URL+"/api/search/admin/reindex", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["documentsIndexed"])
	assert.Equal(t, float64(0), body["documentsFailed"])

	stats, ok := p.LastBulk()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Indexed)
}

func TestStatsEndpoint(t *testing.T) {
	server, p := newTestServer(t, nil)
	seedDocuments(t, p, publishedSnapshot(1), publishedSnapshot(2))

	resp, err := http.Get(server.URL + "/api/search/admin/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body["indexedDocuments"])
}

func TestEndpointsWhenSearchDisabled(t *testing.T) {
	p := NewPipeline(nil, &fakeDocumentSource{}, NewMapper(nil), testLogger(), testMetrics(), PipelineConfig{})
	defer p.Close()

	handlers := NewHandlers(NewService(nil, nil, testLogger(), testMetrics()), p, testLogger())
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/api/search/documents"},
		{"GET", "/api/search/autocomplete?q=x"},
		{"GET", "/api/search/similar/1"},
		{"POST", "/api/search/admin/reindex"},
		{"GET", "/api/search/admin/stats"},
	}

	for _, tt := range paths {
		req, err := http.NewRequestWithContext(context.Background(), tt.method, server.URL+tt.path, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "%s %s", tt.method, tt.path)
	}
}
