// ABOUTME: Today's story: one generation per UTC day, language, topic and length
// ABOUTME: Later requests the same day are served from the TTL cache

package story

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/2389/tatasbox/internal/cache"
	"github.com/2389/tatasbox/internal/metrics"
)

// Daily serves one story per day for each request shape.
type Daily struct {
	gen   Generator
	cache *cache.Cache[Story]
	now   func() time.Time
}

// NewDaily wraps gen with c. A nil now uses time.Now.
func NewDaily(gen Generator, c *cache.Cache[Story], now func() time.Time) *Daily {
	if now == nil {
		now = time.Now
	}
	return &Daily{gen: gen, cache: c, now: now}
}

// Today returns today's story for req, generating it on the first call of
// the day. The bool reports whether it came from the cache.
func (d *Daily) Today(ctx context.Context, req Request) (Story, bool, error) {
	req, err := req.Normalize()
	if err != nil {
		return Story{}, false, err
	}

	key := strings.Join([]string{
		d.now().UTC().Format("2006-01-02"),
		req.Language,
		req.Topic,
		strconv.Itoa(req.Words),
	}, "|")

	s, hit, err := d.cache.GetOrLoad(ctx, key, func(ctx context.Context) (Story, error) {
		return d.gen.Generate(ctx, req)
	})
	if err != nil {
		return Story{}, false, err
	}
	if hit {
		metrics.RecordStoryCacheHit()
	}
	return s, hit, nil
}
