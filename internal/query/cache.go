package query

import (
	"sync"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/domain"
)

// optionsCache holds the filter option lists for a short TTL. The lists only
// change when the pipeline rebuilds the artifacts, so recomputing them per
// request would open a DuckDB handle for data that is almost always identical.
type optionsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	value   FilterOptions
	expires time.Time
}

func newOptionsCache(ttl time.Duration) *optionsCache {
	return &optionsCache{ttl: ttl}
}

func (c *optionsCache) get() (FilterOptions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expires.IsZero() || domain.Now().After(c.expires) {
		return FilterOptions{}, false
	}
	return c.value, true
}

func (c *optionsCache) put(opts FilterOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = opts
	c.expires = domain.Now().Add(c.ttl)
}
