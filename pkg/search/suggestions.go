package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quillstack/docsearch/pkg/observability"
)

const (
	suggestionKeyPrefix = "docsearch:suggest:"
	suggestionLocalSize = 512
)

// SuggestionCache is a two-tier cache for autocomplete results: a small
// in-process LRU in front of Redis. Redis is optional; with a nil client
// only the local tier is used.
type SuggestionCache struct {
	local   *lru.Cache[string, []string]
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewSuggestionCache creates the cache. ttl applies to the Redis tier.
func NewSuggestionCache(redisClient *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*SuggestionCache, error) {
	local, err := lru.New[string, []string](suggestionLocalSize)
	if err != nil {
		return nil, err
	}
	return &SuggestionCache{
		local:   local,
		redis:   redisClient,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func suggestionKey(prefix string) string {
	return suggestionKeyPrefix + strings.ToLower(strings.TrimSpace(prefix))
}

// Get looks the prefix up, local tier first. A Redis hit is promoted into
// the local tier.
func (c *SuggestionCache) Get(ctx context.Context, prefix string) ([]string, bool) {
	key := suggestionKey(prefix)

	if suggestions, ok := c.local.Get(key); ok {
		c.metrics.CacheHitsTotal.WithLabelValues("local").Inc()
		return suggestions, true
	}
	c.metrics.CacheMissesTotal.WithLabelValues("local").Inc()

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Debug("Suggestion cache read failed")
		return nil, false
	}

	var suggestions []string
	if err := json.Unmarshal(data, &suggestions); err != nil {
		c.logger.WithError(err).Warn("Corrupt suggestion cache entry, dropping")
		c.redis.Del(ctx, key)
		return nil, false
	}

	c.metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	c.local.Add(key, suggestions)
	return suggestions, true
}

// Set stores the suggestions in both tiers. Redis failures are logged and
// ignored; the cache is never load-bearing.
func (c *SuggestionCache) Set(ctx context.Context, prefix string, suggestions []string) {
	key := suggestionKey(prefix)
	c.local.Add(key, suggestions)

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(suggestions)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Suggestion cache write failed")
	}
}

// Purge clears the local tier. Used by tests and after bulk re-indexing.
func (c *SuggestionCache) Purge() {
	c.local.Purge()
}
