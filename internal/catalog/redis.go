package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

const (
	redisServicesKey    = "catalog:services"
	redisSpecialistsKey = "catalog:specialists"
)

// RedisSource shares catalog reads across dashboard instances. Snapshots
// carry the time they were read from the database and are ignored once older
// than ttl; misses and Redis errors fall through to next.
type RedisSource struct {
	next   Source
	redis  *redis.Client
	ttl    time.Duration
	now    Clock
	logger *logging.Logger
}

// sharedSnapshot is the JSON stored under each catalog key.
type sharedSnapshot[T any] struct {
	FetchedAt time.Time `json:"fetched_at"`
	Items     []T       `json:"items"`
}

func NewRedisSource(next Source, client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisSource {
	if next == nil {
		panic("catalog: redis source requires an underlying source")
	}
	if client == nil {
		panic("catalog: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisSource{next: next, redis: client, ttl: ttl, now: time.Now, logger: logger.Component("catalog.redis")}
}

// WithClock replaces the clock used to stamp and age snapshots.
func (s *RedisSource) WithClock(clock Clock) *RedisSource {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *RedisSource) ActiveServices(ctx context.Context) ([]Service, error) {
	items, _, err := s.StampedServices(ctx)
	return items, err
}

func (s *RedisSource) ActiveSpecialists(ctx context.Context) ([]Specialist, error) {
	items, _, err := s.StampedSpecialists(ctx)
	return items, err
}

// StampedServices returns the services with the time they were read from
// the database.
func (s *RedisSource) StampedServices(ctx context.Context) ([]Service, Origin, error) {
	return readThrough(ctx, s, redisServicesKey, s.next.ActiveServices)
}

// StampedSpecialists returns the specialists with the time they were read
// from the database.
func (s *RedisSource) StampedSpecialists(ctx context.Context) ([]Specialist, Origin, error) {
	return readThrough(ctx, s, redisSpecialistsKey, s.next.ActiveSpecialists)
}

// Purge removes the shared snapshots.
func (s *RedisSource) Purge(ctx context.Context) error {
	return s.redis.Del(ctx, redisServicesKey, redisSpecialistsKey).Err()
}

func readThrough[T any](ctx context.Context, s *RedisSource, key string, load func(context.Context) ([]T, error)) ([]T, Origin, error) {
	var snap sharedSnapshot[T]
	if s.get(ctx, key, &snap) && len(snap.Items) > 0 && !snap.FetchedAt.IsZero() {
		if s.now().Sub(snap.FetchedAt) <= s.ttl {
			return snap.Items, Origin{FetchedAt: snap.FetchedAt, Shared: true}, nil
		}
	}

	fetchedAt := s.now()
	items, err := load(ctx)
	if err != nil {
		return nil, Origin{}, err
	}
	if len(items) > 0 {
		s.set(ctx, key, sharedSnapshot[T]{FetchedAt: fetchedAt, Items: items})
	}
	return items, Origin{FetchedAt: fetchedAt}, nil
}

func (s *RedisSource) get(ctx context.Context, key string, dst any) bool {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn("redis catalog read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("redis catalog snapshot corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (s *RedisSource) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("encode catalog snapshot", "key", key, "error", err)
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("redis catalog write failed", "key", key, "error", err)
	}
}
