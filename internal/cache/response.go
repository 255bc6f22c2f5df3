package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/metrics"
)

const (
	DefaultTTL    = 300 * time.Second
	DefaultWindow = 60 * time.Second
)

// ResponseCache caches upstream JSON payloads. Keys rotate every window
// while entries live for ttl; the two durations are independent.
//
// Misses are not coordinated: concurrent requests for a cold key each call
// upstream and the last Save wins.
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	window time.Duration
	log    *logrus.Entry
}

func NewResponseCache(logger *logrus.Logger, store Store, ttl, window time.Duration) *ResponseCache {
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		window: window,
		log:    logger.WithField("component", "response_cache"),
	}
}

func (c *ResponseCache) TTL() time.Duration { return c.ttl }

// pathParam carries the request path into the params segment so that
// different resources requested by one user never share a key. It overrides
// a query parameter of the same name.
const pathParam = ":path"

// Key derives the cache key for a request by user for path with the given
// query.
func (c *ResponseCache) Key(user *auth.Identity, path string, query url.Values) string {
	params := Params(query)
	params[pathParam] = path
	key := Key(user, params, c.window)
	c.log.WithField("key", key).Debug("Derived cache key")
	return key
}

// Lookup returns the cached payload for key. Store errors count as a miss.
func (c *ResponseCache) Lookup(ctx context.Context, key string) (json.RawMessage, bool) {
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.log.WithError(err).WithField("key", key).Warn("Cache lookup failed")
		return nil, false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return json.RawMessage(value), true
}

// Save stores v under key for the configured TTL. Failures are logged and
// otherwise ignored.
func (c *ResponseCache) Save(ctx context.Context, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues("error").Inc()
		c.log.WithError(err).WithField("key", key).Error("Failed to encode cache value")
		return
	}
	if err := c.store.Set(ctx, key, body, c.ttl); err != nil {
		metrics.CacheWritesTotal.WithLabelValues("error").Inc()
		c.log.WithError(err).WithField("key", key).Warn("Failed to cache response")
		return
	}
	metrics.CacheWritesTotal.WithLabelValues("ok").Inc()
}
