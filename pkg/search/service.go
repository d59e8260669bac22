package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quillstack/docsearch/pkg/observability"
)

var searchTracer = otel.Tracer("docsearch.search.service")

const (
	autocompleteLimit   = 10
	defaultSimilarLimit = 5
	maxSimilarLimit     = 50
	maxSimilarTerms     = 12
)

// SearchResult is one hit, shaped for the API.
type SearchResult struct {
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	FileName       string              `json:"fileName"`
	FileType       string              `json:"fileType"`
	FileSize       int64               `json:"fileSize"`
	ThumbnailURL   string              `json:"thumbnailUrl,omitempty"`
	AuthorID       int64               `json:"authorId"`
	AuthorName     string              `json:"authorName"`
	AuthorUsername string              `json:"authorUsername"`
	Tags           []string            `json:"tags,omitempty"`
	SubjectNames   []string            `json:"subjectNames,omitempty"`
	FolderName     string              `json:"folderName,omitempty"`
	Status         string              `json:"status"`
	Visibility     string              `json:"visibility"`
	IsFeatured     bool                `json:"isFeatured"`
	Language       string              `json:"language"`
	ViewCount      int64               `json:"viewCount"`
	DownloadCount  int64               `json:"downloadCount"`
	FavouriteCount int64               `json:"favouriteCount"`
	RatingAverage  *float64            `json:"ratingAverage,omitempty"`
	RatingCount    int64               `json:"ratingCount"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	Score          float64             `json:"score"`
	Highlights     map[string][]string `json:"highlights,omitempty"`
}

// SearchResponse is a full page of hits. Query echoes the request's text.
type SearchResponse struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	TotalHits  int64          `json:"totalHits"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int            `json:"totalPages"`
	TookMs     int64          `json:"tookMs"`
}

// Service answers search queries against the index.
type Service struct {
	index       *Index
	suggestions *SuggestionCache
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService creates the query service. The suggestion cache is optional.
func NewService(index *Index, suggestions *SuggestionCache, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		index:       index,
		suggestions: suggestions,
		logger:      logger,
		metrics:     metrics,
	}
}

// Search runs a ranked, filtered, paginated query. Unlike index writes,
// query failures are returned to the caller.
func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	ctx, span := searchTracer.Start(ctx, "search.documents")
	defer span.End()

	req.normalize()
	span.SetAttributes(
		attribute.String("search.query", req.Query),
		attribute.Int("search.page", req.Page),
		attribute.Int("search.size", req.Size),
	)

	start := time.Now()

	breq := bleve.NewSearchRequestOptions(buildQuery(req), req.Size, req.Page*req.Size, false)
	breq.Fields = []string{"*"}
	breq.SortBy(sortOrder(req))
	if *req.Highlight && req.Query != "" {
		breq.Highlight = bleve.NewHighlightWithStyle(HighlighterName)
		breq.Highlight.AddField("title")
		breq.Highlight.AddField("description")
		breq.Highlight.AddField("content")
	}

	res, err := s.index.Search(ctx, breq)
	if err != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues("search", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	took := time.Since(start)
	s.metrics.SearchRequestsTotal.WithLabelValues("search", "ok").Inc()
	s.metrics.SearchDuration.WithLabelValues("search").Observe(took.Seconds())
	s.metrics.SearchHitsTotal.Observe(float64(res.Total))

	response := &SearchResponse{
		Query:      req.Query,
		Results:    make([]SearchResult, 0, len(res.Hits)),
		TotalHits:  int64(res.Total),
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: totalPages(int64(res.Total), req.Size),
		TookMs:     took.Milliseconds(),
	}
	for _, hit := range res.Hits {
		response.Results = append(response.Results, resultFromHit(hit))
	}

	span.SetAttributes(attribute.Int64("search.hits", response.TotalHits))
	return response, nil
}

// Autocomplete suggests up to ten distinct titles for a prefix. A blank
// prefix returns an empty list without touching the index.
func (s *Service) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return []string{}, nil
	}

	ctx, span := searchTracer.Start(ctx, "search.autocomplete")
	defer span.End()
	span.SetAttributes(attribute.String("search.prefix", trimmed))

	if s.suggestions != nil {
		if cached, ok := s.suggestions.Get(ctx, trimmed); ok {
			return cached, nil
		}
	}

	start := time.Now()

	q := bleve.NewPrefixQuery(strings.ToLower(trimmed))
	q.SetField("titlePrefix")

	breq := bleve.NewSearchRequestOptions(q, autocompleteLimit, 0, false)
	breq.Fields = []string{"title"}

	res, err := s.index.Search(ctx, breq)
	if err != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues("autocomplete", "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("autocomplete query failed: %w", err)
	}

	s.metrics.SearchRequestsTotal.WithLabelValues("autocomplete", "ok").Inc()
	s.metrics.SearchDuration.WithLabelValues("autocomplete").Observe(time.Since(start).Seconds())

	suggestions := make([]string, 0, len(res.Hits))
	seen := make(map[string]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		title := fieldString(hit.Fields, "title")
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		suggestions = append(suggestions, title)
	}

	if s.suggestions != nil {
		s.suggestions.Set(ctx, trimmed, suggestions)
	}
	return suggestions, nil
}

// FindSimilar returns documents sharing significant terms with the given
// one. An id that is not indexed yields an empty list, not an error.
func (s *Service) FindSimilar(ctx context.Context, id int64, limit int) ([]SearchResult, error) {
	ctx, span := searchTracer.Start(ctx, "search.similar")
	defer span.End()
	span.SetAttributes(attribute.Int64("document.id", id))

	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	seed, err := s.index.Get(ctx, id)
	if err != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues("similar", "error").Inc()
		span.RecordError(err)
		return nil, err
	}
	if seed == nil {
		return []SearchResult{}, nil
	}

	terms := significantTerms(seed)
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	start := time.Now()

	alternatives := make([]query.Query, 0, len(terms)*3)
	for _, term := range terms {
		title := bleve.NewMatchQuery(term)
		title.SetField("title")
		title.SetBoost(2.0)
		description := bleve.NewMatchQuery(term)
		description.SetField("description")
		tag := bleve.NewTermQuery(term)
		tag.SetField("tags")
		alternatives = append(alternatives, title, description, tag)
	}

	root := bleve.NewBooleanQuery()
	root.AddMust(bleve.NewDisjunctionQuery(alternatives...))
	root.AddMustNot(bleve.NewDocIDQuery([]string{seed.DocID()}))

	breq := bleve.NewSearchRequestOptions(root, limit, 0, false)
	breq.Fields = []string{"*"}
	breq.SortBy([]string{"-_score"})

	res, err := s.index.Search(ctx, breq)
	if err != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues("similar", "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	s.metrics.SearchRequestsTotal.WithLabelValues("similar", "ok").Inc()
	s.metrics.SearchDuration.WithLabelValues("similar").Observe(time.Since(start).Seconds())

	results := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, resultFromHit(hit))
	}
	return results, nil
}

// Count exposes the index document count, used by health checks and the
// admin stats endpoint.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.index.Count(ctx)
}

// significantTerms picks the most frequent meaningful words from the
// seed's title, description, and tags, capped at maxSimilarTerms.
func significantTerms(rec *SearchRecord) []string {
	freq := make(map[string]int)
	order := make([]string, 0, 32)

	note := func(word string) {
		word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return !isWordRune(r)
		}))
		if len(word) < 3 || stopWords[word] {
			return
		}
		if _, seen := freq[word]; !seen {
			order = append(order, word)
		}
		freq[word]++
	}

	for _, word := range strings.Fields(rec.Title) {
		note(word)
	}
	for _, word := range strings.Fields(rec.Description) {
		note(word)
	}
	for _, tag := range rec.Tags {
		note(tag)
	}

	// Most frequent first; first appearance wins ties so term selection
	// is deterministic.
	rank := make(map[string]int, len(order))
	for i, w := range order {
		rank[w] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if freq[order[a]] != freq[order[b]] {
			return freq[order[a]] > freq[order[b]]
		}
		return rank[order[a]] < rank[order[b]]
	})

	if len(order) > maxSimilarTerms {
		order = order[:maxSimilarTerms]
	}
	return order
}

func isWordRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

var stopWords = map[string]bool{
	"and": true, "are": true, "for": true, "from": true, "has": true,
	"its": true, "not": true, "our": true, "the": true, "their": true,
	"this": true, "that": true, "was": true, "were": true, "will": true,
	"with": true, "you": true, "your": true, "about": true, "into": true,
}

func resultFromHit(hit *blevesearch.DocumentMatch) SearchResult {
	rec := recordFromFields(hit.ID, hit.Fields)

	result := SearchResult{
		ID:             rec.ID,
		Title:          rec.Title,
		Description:    rec.Description,
		FileName:       rec.FileName,
		FileType:       rec.FileType,
		FileSize:       rec.FileSize,
		ThumbnailURL:   rec.ThumbnailURL,
		AuthorID:       rec.AuthorID,
		AuthorName:     rec.AuthorName,
		AuthorUsername: rec.AuthorUsername,
		Tags:           rec.Tags,
		SubjectNames:   rec.SubjectNames,
		FolderName:     rec.FolderName,
		Status:         rec.Status,
		Visibility:     rec.Visibility,
		IsFeatured:     rec.IsFeatured,
		Language:       rec.Language,
		ViewCount:      rec.ViewCount,
		DownloadCount:  rec.DownloadCount,
		FavouriteCount: rec.FavouriteCount,
		RatingAverage:  rec.RatingAverage,
		RatingCount:    rec.RatingCount,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		Score:          hit.Score,
	}

	if len(hit.Fragments) > 0 {
		result.Highlights = make(map[string][]string, len(hit.Fragments))
		for field, fragments := range hit.Fragments {
			if len(fragments) > maxFragmentsPerField {
				fragments = fragments[:maxFragmentsPerField]
			}
			result.Highlights[field] = fragments
		}
	}

	return result
}

func totalPages(totalHits int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((totalHits + int64(size) - 1) / int64(size))
}
