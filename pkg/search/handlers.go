package search

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillstack/docsearch/pkg/httputil"
	"github.com/quillstack/docsearch/pkg/observability"
)

// Handlers exposes the search API over HTTP.
type Handlers struct {
	service  *Service
	pipeline *Pipeline
	logger   *observability.Logger
}

// NewHandlers creates the HTTP handlers for search.
func NewHandlers(service *Service, pipeline *Pipeline, logger *observability.Logger) *Handlers {
	return &Handlers{
		service:  service,
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers all search API routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/search/documents", h.SearchDocuments).Methods("POST")
	router.HandleFunc("/api/search/autocomplete", h.Autocomplete).Methods("GET")
	router.HandleFunc("/api/search/similar/{id:[0-9]+}", h.FindSimilar).Methods("GET")

	router.HandleFunc("/api/search/admin/reindex", h.Reindex).Methods("POST")
	router.HandleFunc("/api/search/admin/reindex/{id:[0-9]+}", h.ReindexDocument).Methods("POST")
	router.HandleFunc("/api/search/admin/stats", h.Stats).Methods("GET")
}

// enabled guards every route: with no index configured the whole search
// surface answers 503 instead of failing deeper in.
func (h *Handlers) enabled(w http.ResponseWriter) bool {
	if h.pipeline.Enabled() {
		return true
	}
	httputil.WriteServiceUnavailable(w, "search is disabled")
	return false
}

// SearchDocuments handles POST /api/search/documents
func (h *Handlers) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var req SearchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	response, err := h.service.Search(r.Context(), &req)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Search request failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, response)
}

// Autocomplete handles GET /api/search/autocomplete?q=prefix
func (h *Handlers) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	prefix := httputil.ParseQueryString(r, "q", "")

	suggestions, err := h.service.Autocomplete(r.Context(), prefix)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Autocomplete request failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"query":       prefix,
		"suggestions": suggestions,
	})
}

// FindSimilar handles GET /api/search/similar/{id}?limit=5
func (h *Handlers) FindSimilar(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	limit := httputil.ParseQueryInt(r, "limit", defaultSimilarLimit)

	results, err := h.service.FindSimilar(r.Context(), id, limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Similarity request failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"documentId": id,
		"similar":    results,
		"count":      len(results),
	})
}

// Reindex handles POST /api/search/admin/reindex. Runs synchronously; the
// caller is an operator who wants the counts back.
func (h *Handlers) Reindex(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	stats, err := h.pipeline.BulkIndexAll(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Bulk reindex failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message":          "reindex complete",
		"documentsIndexed": stats.Indexed,
		"documentsFailed":  stats.Failed,
		"durationMs":       stats.Duration.Milliseconds(),
	})
}

// ReindexDocument handles POST /api/search/admin/reindex/{id}
func (h *Handlers) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	outcome, err := h.pipeline.ReindexDocument(r.Context(), id)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Document reindex failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message":    "document reindexed",
		"documentId": id,
		"outcome":    outcome,
	})
}

// Stats handles GET /api/search/admin/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	count, err := h.service.Count(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	stats := map[string]interface{}{
		"indexedDocuments": count,
	}
	if last, ok := h.pipeline.LastBulk(); ok {
		stats["lastBulk"] = map[string]interface{}{
			"indexed":    last.Indexed,
			"failed":     last.Failed,
			"durationMs": last.Duration.Milliseconds(),
			"ranAt":      last.RanAt,
		}
	}

	httputil.WriteSuccess(w, stats)
}
