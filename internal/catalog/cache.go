package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

const (
	DefaultTTL = 5 * time.Minute

	sourceDatabase = "database"
	sourceShared   = "shared"
	sourceFallback = "fallback"
	sourceCache    = "cache"
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// purger is implemented by sources with their own shared cache tier.
type purger interface {
	Purge(ctx context.Context) error
}

type entry[T any] struct {
	items     []T
	fetchedAt time.Time
	valid     bool
}

// Options configures a Cache.
type Options struct {
	TTL     time.Duration
	Clock   Clock
	Logger  *logging.Logger
	Metrics *metrics.DashboardMetrics
}

// Cache holds the service and specialist catalogs for at most TTL.
// Misses and expiries re-fetch synchronously; failures and empty results
// serve the static fallback without caching it.
type Cache struct {
	source  Source
	ttl     time.Duration
	now     Clock
	logger  *logging.Logger
	metrics *metrics.DashboardMetrics

	mu          sync.Mutex
	generation  uint64
	services    entry[Service]
	specialists entry[Specialist]

	group singleflight.Group
}

// NewCache builds a cache over source. A nil source always serves the fallback.
func NewCache(source Source, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Cache{
		source:  source,
		ttl:     opts.TTL,
		now:     opts.Clock,
		logger:  opts.Logger.Component("catalog"),
		metrics: opts.Metrics,
	}
}

// Services returns the active service catalog. It never returns an empty list.
func (c *Cache) Services(ctx context.Context) []Service {
	c.mu.Lock()
	if c.fresh(c.services.valid, c.services.fetchedAt) {
		items := c.services.items
		c.mu.Unlock()
		c.observe("services", sourceCache, len(items))
		return items
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do("services", func() (any, error) {
		return c.loadServices(ctx), nil
	})
	return v.([]Service)
}

// Specialists returns the active specialist catalog. It never returns an empty list.
func (c *Cache) Specialists(ctx context.Context) []Specialist {
	c.mu.Lock()
	if c.fresh(c.specialists.valid, c.specialists.fetchedAt) {
		items := c.specialists.items
		c.mu.Unlock()
		c.observe("specialists", sourceCache, len(items))
		return items
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do("specialists", func() (any, error) {
		return c.loadSpecialists(ctx), nil
	})
	return v.([]Specialist)
}

// All loads both catalogs concurrently.
func (c *Cache) All(ctx context.Context) Snapshot {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Services = c.Services(gctx)
		return nil
	})
	g.Go(func() error {
		snap.Specialists = c.Specialists(gctx)
		return nil
	})
	_ = g.Wait()
	return snap
}

// ServiceByID looks up a service in the current catalog.
func (c *Cache) ServiceByID(ctx context.Context, id string) (Service, bool) {
	if id == "" {
		return Service{}, false
	}
	for _, svc := range c.Services(ctx) {
		if svc.ID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// SpecialistByID looks up a specialist in the current catalog.
func (c *Cache) SpecialistByID(ctx context.Context, id string) (Specialist, bool) {
	if id == "" {
		return Specialist{}, false
	}
	for _, sp := range c.Specialists(ctx) {
		if sp.ID == id {
			return sp, true
		}
	}
	return Specialist{}, false
}

// Invalidate drops both cached catalogs so the next read re-fetches.
// Fetches already in flight will not repopulate the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.services = entry[Service]{}
	c.specialists = entry[Specialist]{}
	c.mu.Unlock()

	if p, ok := c.source.(purger); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Purge(ctx); err != nil {
			c.logger.Warn("failed to purge shared catalog tier", "error", err)
		}
	}
	c.logger.Info("catalog cache cleared")
}

// fresh must be called with mu held.
func (c *Cache) fresh(valid bool, fetchedAt time.Time) bool {
	return valid && c.now().Sub(fetchedAt) <= c.ttl
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) loadServices(ctx context.Context) []Service {
	if c.source == nil {
		c.observe("services", sourceFallback, 0)
		return FallbackServices()
	}
	gen := c.currentGeneration()
	items, origin, err := c.fetchServices(ctx)
	if err != nil {
		c.logger.Warn("service catalog fetch failed, using fallback", "error", err)
		c.observe("services", sourceFallback, 0)
		return FallbackServices()
	}
	if len(items) == 0 {
		c.logger.Warn("no services found in database, using fallback")
		c.observe("services", sourceFallback, 0)
		return FallbackServices()
	}

	fetchedAt, label := c.stamp(origin)
	c.mu.Lock()
	if c.generation == gen {
		c.services = entry[Service]{items: items, fetchedAt: fetchedAt, valid: true}
	}
	c.mu.Unlock()
	c.observe("services", label, len(items))
	return items
}

func (c *Cache) fetchServices(ctx context.Context) ([]Service, Origin, error) {
	if ss, ok := c.source.(stampedSource); ok {
		return ss.StampedServices(ctx)
	}
	items, err := c.source.ActiveServices(ctx)
	return items, Origin{}, err
}

func (c *Cache) loadSpecialists(ctx context.Context) []Specialist {
	if c.source == nil {
		c.observe("specialists", sourceFallback, 0)
		return FallbackSpecialists()
	}
	gen := c.currentGeneration()
	items, origin, err := c.fetchSpecialists(ctx)
	if err != nil {
		c.logger.Warn("specialist catalog fetch failed, using fallback", "error", err)
		c.observe("specialists", sourceFallback, 0)
		return FallbackSpecialists()
	}
	if len(items) == 0 {
		c.logger.Warn("no specialists found in database, using fallback")
		c.observe("specialists", sourceFallback, 0)
		return FallbackSpecialists()
	}

	fetchedAt, label := c.stamp(origin)
	c.mu.Lock()
	if c.generation == gen {
		c.specialists = entry[Specialist]{items: items, fetchedAt: fetchedAt, valid: true}
	}
	c.mu.Unlock()
	c.observe("specialists", label, len(items))
	return items
}

func (c *Cache) fetchSpecialists(ctx context.Context) ([]Specialist, Origin, error) {
	if ss, ok := c.source.(stampedSource); ok {
		return ss.StampedSpecialists(ctx)
	}
	items, err := c.source.ActiveSpecialists(ctx)
	return items, Origin{}, err
}

// stamp picks the expiry base for a fetched list. Shared lists keep their
// original database read time so they never outlive the TTL.
func (c *Cache) stamp(origin Origin) (time.Time, string) {
	now := c.now()
	if origin.FetchedAt.IsZero() || origin.FetchedAt.After(now) {
		origin.FetchedAt = now
	}
	if origin.Shared {
		return origin.FetchedAt, sourceShared
	}
	return origin.FetchedAt, sourceDatabase
}

func (c *Cache) observe(catalog, source string, count int) {
	c.metrics.ObserveCatalogLoad(catalog, source)
	switch source {
	case sourceCache:
		c.logger.Debug("catalog served from cache", "catalog", catalog, "count", count)
	case sourceDatabase:
		c.logger.Info("catalog loaded from database", "catalog", catalog, "count", count)
	case sourceShared:
		c.logger.Info("catalog loaded from shared tier", "catalog", catalog, "count", count)
	default:
		c.logger.Info("catalog served from fallback", "catalog", catalog)
	}
}
