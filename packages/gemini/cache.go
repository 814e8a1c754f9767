package gemini

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"quoteminer/packages/metrics"

	"github.com/redis/go-redis/v9"
)

// AuthorCache remembers classification verdicts by page title so that an
// inclusive resume or a re-queued dump does not re-bill identical calls.
// It is strictly a cost guard: every failure degrades to a live API call.
type AuthorCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewAuthorCache(addr, password string, db int, prefix string, ttl time.Duration) *AuthorCache {
	return &AuthorCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *AuthorCache) Get(ctx context.Context, title string) (ClassificationResult, bool) {
	var res ClassificationResult
	data, err := c.rdb.Get(ctx, c.prefix+title).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("Author cache lookup failed", "title", title, "error", err)
		}
		metrics.AuthorCacheHits.WithLabelValues("miss").Inc()
		return res, false
	}
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Debug("Author cache entry corrupt", "title", title, "error", err)
		metrics.AuthorCacheHits.WithLabelValues("miss").Inc()
		return res, false
	}
	metrics.AuthorCacheHits.WithLabelValues("hit").Inc()
	return res, true
}

func (c *AuthorCache) Put(ctx context.Context, title string, res ClassificationResult) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+title, data, c.ttl).Err(); err != nil {
		slog.Debug("Author cache write failed", "title", title, "error", err)
	}
}

func (c *AuthorCache) Close() error {
	return c.rdb.Close()
}
