package roster

import (
	"context"
	"sync"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
	"go.uber.org/zap"
)

const defaultCacheTTL = 1 * time.Hour

// CachedSource wraps a Source with an in-memory TTL cache keyed by the
// requested range. Keeps repeated board builds from replaying the whole
// login choreography against the portal.
type CachedSource struct {
	inner  Source
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*cachedRange
}

type cachedRange struct {
	events    []*tigris.Event
	fetchedAt time.Time
}

// NewCachedSource creates a CachedSource. A zero TTL falls back to one hour.
func NewCachedSource(inner Source, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{
		inner:  inner,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]*cachedRange),
	}
}

// Events returns cached events for the range when fresh, fetching otherwise.
func (cs *CachedSource) Events(ctx context.Context, from, to time.Time) ([]*tigris.Event, error) {
	key := from.Format("2006-01-02") + "_" + to.Format("2006-01-02")

	cs.mu.RLock()
	if cached, ok := cs.cache[key]; ok && time.Since(cached.fetchedAt) < cs.ttl {
		cs.mu.RUnlock()
		cs.logger.Debug("Using cached events", zap.String("range", key))
		return cached.events, nil
	}
	cs.mu.RUnlock()

	events, err := cs.inner.Events(ctx, from, to)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	cs.cache[key] = &cachedRange{events: events, fetchedAt: time.Now()}
	cs.mu.Unlock()

	return events, nil
}

// ClearCache clears the cache.
func (cs *CachedSource) ClearCache() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache = make(map[string]*cachedRange)
	cs.logger.Info("Event cache cleared")
}
