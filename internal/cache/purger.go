package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/metrics"
)

type CachePurger struct {
	log      *logrus.Entry
	purger   Purger
	interval time.Duration
}

func NewCachePurger(logger *logrus.Logger, purger Purger, interval time.Duration) *CachePurger {
	return &CachePurger{
		log:      logger.WithField("component", "cache_purger"),
		purger:   purger,
		interval: interval,
	}
}

// Start purges expired entries every interval until ctx is done.
func (c *CachePurger) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.WithField("interval", c.interval).Info("Starting cache purger")

	for {
		select {
		case <-ticker.C:
			c.PurgeOnce(ctx)
		case <-ctx.Done():
			c.log.Info("Stopping cache purger")
			return
		}
	}
}

func (c *CachePurger) PurgeOnce(ctx context.Context) int {
	log := c.log.WithField("operation", "cache_purge")

	count, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Error("Cache purge failed")
	}
	if count > 0 {
		metrics.CachePurgedTotal.Add(float64(count))
		log.WithField("count", count).Info("Purged expired cache entries")
	}
	return count
}
