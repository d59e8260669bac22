package extract

import (
	"context"
	"errors"
	"net/url"

	"github.com/quillstack/docsearch/pkg/observability"
)

// ObjectFetcher downloads one stored object in full.
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Extractor fetches document blobs and extracts searchable text.
type Extractor struct {
	objects ObjectFetcher
	logger  *observability.Logger
	metrics *observability.Metrics
	limit   int
}

// NewExtractor creates an extractor with the standard text cap.
func NewExtractor(objects ObjectFetcher, logger *observability.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		objects: objects,
		logger:  logger,
		metrics: metrics,
		limit:   MaxTextLength,
	}
}

// ExtractText returns the plain text of the object behind objectKey, using
// fileName to pick the parser. The key is percent-decoded first since the
// upload path stores encoded keys. Any failure logs and returns ok=false;
// a truncated result is still ok.
func (e *Extractor) ExtractText(ctx context.Context, objectKey, fileName string) (string, bool) {
	key := objectKey
	if decoded, err := url.QueryUnescape(objectKey); err == nil {
		key = decoded
	}

	data, err := e.objects.Fetch(ctx, key)
	if err != nil {
		e.logger.WithError(err).WithField("object_key", key).
			Warn("Failed to fetch object for text extraction")
		e.metrics.ExtractionsTotal.WithLabelValues("fetch_error").Inc()
		return "", false
	}

	if fileName == "" {
		fileName = key
	}

	text, err := ParserFor(fileName).Parse(data, e.limit)
	if err != nil && !errors.Is(err, ErrTruncated) {
		e.logger.WithError(err).WithField("object_key", key).
			Warn("Failed to parse document content")
		e.metrics.ExtractionsTotal.WithLabelValues("parse_error").Inc()
		return "", false
	}
	if errors.Is(err, ErrTruncated) {
		e.logger.WithField("object_key", key).Debug("Extracted text truncated at limit")
		e.metrics.ExtractionsTotal.WithLabelValues("truncated").Inc()
		return text, true
	}

	e.metrics.ExtractionsTotal.WithLabelValues("ok").Inc()
	return text, true
}
