package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/highlight"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"
)

const (
	// lowercaseKeyword analyzes a whole value into one lowercased token.
	// titlePrefix uses it so prefix queries implement search-as-you-type;
	// tags use it so tag matching is case-insensitive.
	lowercaseKeyword = "keyword_lowercase"

	// HighlighterName is the registered highlighter used for search
	// result fragments.
	HighlighterName = "docsearch_em"

	highlightFragmentSize = 150
	maxFragmentsPerField  = 3
)

func init() {
	// Fragments are wrapped in <em class="highlight"> tags, which is what
	// the web client styles.
	registry.RegisterHighlighter(HighlighterName,
		func(config map[string]interface{}, cache *registry.Cache) (highlight.Highlighter, error) {
			fragmenter := simplefrag.NewFragmenter(highlightFragmentSize)
			formatter := htmlformat.NewFragmentFormatter(`<em class="highlight">`, `</em>`)
			return simplehl.NewHighlighter(fragmenter, formatter, simplehl.DefaultSeparator), nil
		})
}

// Index is the bleve-backed search index holding SearchRecords.
type Index struct {
	idx bleve.Index
}

// NewIndex opens the index at path, creating it with the standard mapping
// when it does not exist yet.
func NewIndex(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m, mErr := buildIndexMapping()
		if mErr != nil {
			return nil, mErr
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index at %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemoryIndex creates an in-memory index, used in tests.
func NewMemoryIndex() (*Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	err := im.AddCustomAnalyzer(lowercaseKeyword, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []interface{}{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register keyword analyzer: %w", err)
	}

	englishText := bleve.NewTextFieldMapping()
	englishText.Analyzer = en.AnalyzerName

	keywordText := bleve.NewTextFieldMapping()
	keywordText.Analyzer = keyword.Name

	prefixText := bleve.NewTextFieldMapping()
	prefixText.Analyzer = lowercaseKeyword
	prefixText.IncludeInAll = false

	lowerKeywordText := bleve.NewTextFieldMapping()
	lowerKeywordText.Analyzer = lowercaseKeyword

	numeric := bleve.NewNumericFieldMapping()
	boolean := bleve.NewBooleanFieldMapping()
	datetime := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", englishText)
	doc.AddFieldMappingsAt("titleExact", keywordText)
	doc.AddFieldMappingsAt("titlePrefix", prefixText)
	doc.AddFieldMappingsAt("description", englishText)
	doc.AddFieldMappingsAt("content", englishText)

	doc.AddFieldMappingsAt("fileName", keywordText)
	doc.AddFieldMappingsAt("fileType", keywordText)
	doc.AddFieldMappingsAt("fileSize", numeric)
	doc.AddFieldMappingsAt("objectKey", keywordText)
	doc.AddFieldMappingsAt("thumbnailUrl", keywordText)

	doc.AddFieldMappingsAt("authorId", numeric)
	doc.AddFieldMappingsAt("authorName", englishText)
	doc.AddFieldMappingsAt("authorUsername", keywordText)

	doc.AddFieldMappingsAt("tags", lowerKeywordText)
	doc.AddFieldMappingsAt("subjectIds", numeric)
	doc.AddFieldMappingsAt("subjectNames", englishText)

	doc.AddFieldMappingsAt("folderId", numeric)
	doc.AddFieldMappingsAt("folderName", englishText)

	doc.AddFieldMappingsAt("status", keywordText)
	doc.AddFieldMappingsAt("visibility", keywordText)
	doc.AddFieldMappingsAt("isFeatured", boolean)
	doc.AddFieldMappingsAt("language", keywordText)

	doc.AddFieldMappingsAt("viewCount", numeric)
	doc.AddFieldMappingsAt("downloadCount", numeric)
	doc.AddFieldMappingsAt("favouriteCount", numeric)
	doc.AddFieldMappingsAt("ratingAverage", numeric)
	doc.AddFieldMappingsAt("ratingCount", numeric)

	doc.AddFieldMappingsAt("createdAt", datetime)
	doc.AddFieldMappingsAt("updatedAt", datetime)
	doc.AddFieldMappingsAt("indexedAt", datetime)

	im.DefaultMapping = doc
	return im, nil
}

// Upsert writes the record, replacing any previous version of the same id.
func (i *Index) Upsert(ctx context.Context, rec *SearchRecord) error {
	if err := i.idx.Index(rec.DocID(), rec); err != nil {
		return fmt.Errorf("failed to index document %d: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the record. Deleting an absent id is a no-op.
func (i *Index) Delete(ctx context.Context, id int64) error {
	if err := i.idx.Delete(strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("failed to delete document %d from index: %w", id, err)
	}
	return nil
}

// Get fetches one record by id. Returns nil when the id is not indexed.
func (i *Index) Get(ctx context.Context, id int64) (*SearchRecord, error) {
	q := bleve.NewDocIDQuery([]string{strconv.FormatInt(id, 10)})
	req := bleve.NewSearchRequest(q)
	req.Fields = []string{"*"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %d from index: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	return recordFromFields(res.Hits[0].ID, res.Hits[0].Fields), nil
}

// Search executes a raw bleve request.
func (i *Index) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return i.idx.SearchInContext(ctx, req)
}

// Count returns the number of indexed documents.
func (i *Index) Count(ctx context.Context) (uint64, error) {
	return i.idx.DocCount()
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// recordFromFields rebuilds a SearchRecord from stored hit fields. bleve
// returns scalars for single values and []interface{} for multi-valued
// fields, and datetimes as RFC 3339 strings.
func recordFromFields(id string, fields map[string]interface{}) *SearchRecord {
	rec := &SearchRecord{
		Title:          fieldString(fields, "title"),
		TitleExact:     fieldString(fields, "titleExact"),
		TitlePrefix:    fieldString(fields, "titlePrefix"),
		Description:    fieldString(fields, "description"),
		Content:        fieldString(fields, "content"),
		FileName:       fieldString(fields, "fileName"),
		FileType:       fieldString(fields, "fileType"),
		FileSize:       fieldInt64(fields, "fileSize"),
		ObjectKey:      fieldString(fields, "objectKey"),
		ThumbnailURL:   fieldString(fields, "thumbnailUrl"),
		AuthorID:       fieldInt64(fields, "authorId"),
		AuthorName:     fieldString(fields, "authorName"),
		AuthorUsername: fieldString(fields, "authorUsername"),
		Tags:           fieldStrings(fields, "tags"),
		SubjectIDs:     fieldInt64s(fields, "subjectIds"),
		SubjectNames:   fieldStrings(fields, "subjectNames"),
		FolderID:       fieldInt64(fields, "folderId"),
		FolderName:     fieldString(fields, "folderName"),
		Status:         fieldString(fields, "status"),
		Visibility:     fieldString(fields, "visibility"),
		IsFeatured:     fieldBool(fields, "isFeatured"),
		Language:       fieldString(fields, "language"),
		ViewCount:      fieldInt64(fields, "viewCount"),
		DownloadCount:  fieldInt64(fields, "downloadCount"),
		FavouriteCount: fieldInt64(fields, "favouriteCount"),
		RatingCount:    fieldInt64(fields, "ratingCount"),
		CreatedAt:      fieldTime(fields, "createdAt"),
		UpdatedAt:      fieldTime(fields, "updatedAt"),
		IndexedAt:      fieldTime(fields, "indexedAt"),
	}

	if docID, err := strconv.ParseInt(id, 10, 64); err == nil {
		rec.ID = docID
	}
	if f, ok := fieldValue(fields, "ratingAverage").(float64); ok {
		rec.RatingAverage = &f
	}

	return rec
}

func fieldValue(fields map[string]interface{}, name string) interface{} {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	if vs, ok := v.([]interface{}); ok {
		if len(vs) == 0 {
			return nil
		}
		return vs[0]
	}
	return v
}

func fieldString(fields map[string]interface{}, name string) string {
	if s, ok := fieldValue(fields, name).(string); ok {
		return s
	}
	return ""
}

func fieldInt64(fields map[string]interface{}, name string) int64 {
	if f, ok := fieldValue(fields, name).(float64); ok {
		return int64(f)
	}
	return 0
}

func fieldBool(fields map[string]interface{}, name string) bool {
	if b, ok := fieldValue(fields, name).(bool); ok {
		return b
	}
	return false
}

func fieldTime(fields map[string]interface{}, name string) time.Time {
	if s, ok := fieldValue(fields, name).(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func fieldStrings(fields map[string]interface{}, name string) []string {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	switch vals := v.(type) {
	case string:
		return []string{vals}
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fieldInt64s(fields map[string]interface{}, name string) []int64 {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	switch vals := v.(type) {
	case float64:
		return []int64{int64(vals)}
	case []interface{}:
		out := make([]int64, 0, len(vals))
		for _, item := range vals {
			if f, ok := item.(float64); ok {
				out = append(out, int64(f))
			}
		}
		return out
	}
	return nil
}
