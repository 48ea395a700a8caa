// Package cache provides a typed in-memory TTL cache on top of go-cache.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/caffeineduck/pyexec/internal/logging"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Cache is a typed wrapper around a go-cache instance.
type Cache[V any] struct {
	useCase string
	cache   *gocache.Cache
	log     *logrus.Entry
}

// New returns a cache for useCase. Entries live for defaultExpiration unless
// Set is given an explicit TTL.
func New[V any](useCase string, defaultExpiration, cleanupInterval time.Duration, log *logrus.Entry) *Cache[V] {
	if log == nil {
		log = logging.Discard(logging.CompCache)
	}
	return &Cache[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
		log:     log.WithField("use_case", useCase),
	}
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		c.log.WithField("key", key).Error("wrong type assertion when getting value")
		return zero, false
	}

	c.log.WithField("key", key).Debug("cache hit")
	return v, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}
