package search

import (
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Field boosts for the multi-field match: a title hit outranks a
// description hit, which outranks a content hit.
const (
	titleBoost       = 3.0
	descriptionBoost = 2.0
	contentBoost     = 1.0

	fuzzyPrefixLength = 2

	defaultPageSize = 20
	maxPageSize     = 100
)

// SortBy enumerates the supported sort orders.
type SortBy string

const (
	SortRelevance SortBy = "RELEVANCE"
	SortDate      SortBy = "DATE"
	SortUpdated   SortBy = "UPDATED"
	SortRating    SortBy = "RATING"
	SortViews     SortBy = "VIEWS"
	SortDownloads SortBy = "DOWNLOADS"
	SortFavorites SortBy = "FAVORITES"
	SortTitle     SortBy = "TITLE"
)

// SortDirection is ASC or DESC. RELEVANCE ignores it: score ascending is
// never useful, so relevance always sorts descending.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SearchRequest is the query surface of the search API. All filters are
// conjunctive; within a list filter the values are alternatives.
type SearchRequest struct {
	Query string `json:"query"`

	Statuses     []string `json:"statuses"`
	Visibilities []string `json:"visibilities"`
	Tags         []string `json:"tags"`
	SubjectIDs   []int64  `json:"subjectIds"`
	FileTypes    []string `json:"fileTypes"`

	AuthorID   *int64   `json:"authorId"`
	Language   string   `json:"language"`
	FolderID   *int64   `json:"folderId"`
	IsFeatured *bool    `json:"isFeatured"`
	MinRating  *float64 `json:"minRating"`

	CreatedFrom *time.Time `json:"dateFrom"`
	CreatedTo   *time.Time `json:"dateTo"`

	SortBy        SortBy        `json:"sortBy"`
	SortDirection SortDirection `json:"sortOrder"`

	// Page is zero-based.
	Page int `json:"page"`
	Size int `json:"size"`

	// FuzzySearch tolerates typos in the text query; filters are always
	// exact. Highlight asks for match fragments on hits. Both default to
	// true when the request omits them, hence the pointers.
	FuzzySearch *bool `json:"fuzzySearch"`
	Highlight   *bool `json:"highlightResults"`
}

// normalize applies defaults and clamps pagination.
func (r *SearchRequest) normalize() {
	r.Query = strings.TrimSpace(r.Query)
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = defaultPageSize
	}
	if r.Size > maxPageSize {
		r.Size = maxPageSize
	}
	if r.SortBy == "" {
		r.SortBy = SortRelevance
	}
	if r.SortDirection != SortAsc {
		r.SortDirection = SortDesc
	}
	if r.FuzzySearch == nil {
		enabled := true
		r.FuzzySearch = &enabled
	}
	if r.Highlight == nil {
		enabled := true
		r.Highlight = &enabled
	}
}

// buildQuery translates the request into a bleve query: a fuzzy
// multi-field match for the text, wrapped in a conjunction with every
// active filter.
func buildQuery(r *SearchRequest) query.Query {
	root := bleve.NewBooleanQuery()
	root.AddMust(buildTextQuery(r.Query, *r.FuzzySearch))

	if q := termsFilter("status", r.Statuses); q != nil {
		root.AddMust(q)
	}
	if q := termsFilter("visibility", r.Visibilities); q != nil {
		root.AddMust(q)
	}
	if len(r.Tags) > 0 {
		// Tags are indexed lowercased, so tag filtering is
		// case-insensitive.
		lowered := make([]string, len(r.Tags))
		for i, tag := range r.Tags {
			lowered[i] = strings.ToLower(tag)
		}
		if q := termsFilter("tags", lowered); q != nil {
			root.AddMust(q)
		}
	}
	if q := termsFilter("fileType", r.FileTypes); q != nil {
		root.AddMust(q)
	}
	if len(r.SubjectIDs) > 0 {
		alternatives := make([]query.Query, 0, len(r.SubjectIDs))
		for _, id := range r.SubjectIDs {
			alternatives = append(alternatives, numericEquals("subjectIds", float64(id)))
		}
		root.AddMust(bleve.NewDisjunctionQuery(alternatives...))
	}

	if r.AuthorID != nil {
		root.AddMust(numericEquals("authorId", float64(*r.AuthorID)))
	}
	if r.FolderID != nil {
		root.AddMust(numericEquals("folderId", float64(*r.FolderID)))
	}
	if r.Language != "" {
		term := bleve.NewTermQuery(r.Language)
		term.SetField("language")
		root.AddMust(term)
	}
	if r.IsFeatured != nil {
		featured := bleve.NewBoolFieldQuery(*r.IsFeatured)
		featured.SetField("isFeatured")
		root.AddMust(featured)
	}
	if r.MinRating != nil {
		inclusive := true
		rating := bleve.NewNumericRangeInclusiveQuery(r.MinRating, nil, &inclusive, nil)
		rating.SetField("ratingAverage")
		root.AddMust(rating)
	}
	if r.CreatedFrom != nil || r.CreatedTo != nil {
		var from, to time.Time
		if r.CreatedFrom != nil {
			from = r.CreatedFrom.UTC()
		}
		if r.CreatedTo != nil {
			to = r.CreatedTo.UTC()
		}
		inclusive := true
		created := bleve.NewDateRangeInclusiveQuery(from, to, &inclusive, &inclusive)
		created.SetField("createdAt")
		root.AddMust(created)
	}

	return root
}

// buildTextQuery is the ranked part: title x3, description x2, content x1.
// With fuzzy enabled each term gets automatic edit-distance tolerance after
// a two character exact prefix; without it terms must match exactly. An
// empty query matches everything and leaves ordering to filters and sort.
func buildTextQuery(text string, fuzzy bool) query.Query {
	if text == "" {
		return bleve.NewMatchAllQuery()
	}

	fieldMatch := func(field string, boost float64) query.Query {
		q := bleve.NewMatchQuery(text)
		q.SetField(field)
		q.SetBoost(boost)
		if fuzzy {
			q.SetAutoFuzziness(true)
			q.SetPrefix(fuzzyPrefixLength)
		}
		return q
	}

	return bleve.NewDisjunctionQuery(
		fieldMatch("title", titleBoost),
		fieldMatch("description", descriptionBoost),
		fieldMatch("content", contentBoost),
	)
}

func termsFilter(field string, values []string) query.Query {
	if len(values) == 0 {
		return nil
	}
	alternatives := make([]query.Query, 0, len(values))
	for _, v := range values {
		term := bleve.NewTermQuery(v)
		term.SetField(field)
		alternatives = append(alternatives, term)
	}
	return bleve.NewDisjunctionQuery(alternatives...)
}

func numericEquals(field string, value float64) query.Query {
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&value, &value, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

// sortOrder maps the sort enum onto bleve sort keys, always with score as
// the tiebreak.
func sortOrder(r *SearchRequest) []string {
	var field string
	switch r.SortBy {
	case SortDate:
		field = "createdAt"
	case SortUpdated:
		field = "updatedAt"
	case SortRating:
		field = "ratingAverage"
	case SortViews:
		field = "viewCount"
	case SortDownloads:
		field = "downloadCount"
	case SortFavorites:
		field = "favouriteCount"
	case SortTitle:
		field = "titleExact"
	default:
		return []string{"-_score"}
	}

	if r.SortDirection == SortDesc {
		field = "-" + field
	}
	return []string{field, "-_score"}
}
