package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
	appconfig "github.com/wolfman30/dental-booking-dashboard/internal/config"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

// Feed drivers accepted in FEED_DRIVER.
const (
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
	FeedMemory   = "memory"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ClinicLocation resolves the clinic timezone, warning when it falls back to
// UTC since every "today" KPI depends on it.
func ClinicLocation(cfg *appconfig.Config, logger *logging.Logger) *time.Location {
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := cfg.LoadLocation()
	if err != nil {
		logger.Warn("unknown clinic timezone, using UTC", "error", err)
		return time.UTC
	}
	return loc
}

// BuildPool opens the Postgres pool or returns nil when DATABASE_URL is unset.
func BuildPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open pool: %w", err)
	}
	return pool, nil
}

// BuildCatalogSource reads the catalog from Postgres, behind the shared Redis
// layer when enabled. It returns nil without a pool, leaving the cache on its
// static fallback.
func BuildCatalogSource(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) catalog.Source {
	if pool == nil {
		return nil
	}
	var src catalog.Source = catalog.NewPostgresSource(pool)
	if cfg != nil && cfg.CatalogRedisEnabled && redisClient != nil {
		src = catalog.NewRedisSource(src, redisClient, cfg.CatalogCacheTTL, logger)
	}
	return src
}

// BuildFeed selects the change feed named by FEED_DRIVER. The returned
// publisher is nil for the postgres driver, where the database trigger
// announces changes itself.
func BuildFeed(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) (changefeed.Feed, changefeed.Publisher, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.FeedDriver))
	if driver == "" {
		driver = FeedPostgres
	}
	switch driver {
	case FeedPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("bootstrap: %s feed requires DATABASE_URL", driver)
		}
		// The bookings trigger notifies on a fixed channel.
		if ch := strings.TrimSpace(cfg.FeedChannel); ch != "" && ch != changefeed.DefaultChannel {
			return nil, nil, fmt.Errorf("bootstrap: %s feed channel %q does not match the trigger channel %q",
				driver, ch, changefeed.DefaultChannel)
		}
		return changefeed.NewPostgresFeed(pool, cfg.FeedChannel, logger), nil, nil
	case FeedRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("bootstrap: %s feed requires REDIS_ADDR", driver)
		}
		feed := changefeed.NewRedisFeed(redisClient, cfg.FeedChannel, logger)
		return feed, feed, nil
	case FeedMemory:
		feed := changefeed.NewMemoryFeed()
		return feed, feed, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown feed driver %q", driver)
	}
}
