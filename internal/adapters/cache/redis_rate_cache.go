package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/domain/providers"
	redisclient "github.com/zatekoja/ratebenchmark/internal/infrastructure/clients/redis"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
)

// RedisRateCache implements RateCacheStore using Redis, so that several
// service instances share fetched dataset rows.
//
// Keys expire in Redis after twice the TTL; freshness is decided from the
// stored fetched_at so an expired entry is still reported as expired rather
// than absent for one more TTL window.
type RedisRateCache struct {
	client *redisclient.Client
	ttl    time.Duration
	clock  providers.Clock
}

// NewRedisRateCache creates a new Redis rate cache
func NewRedisRateCache(client *redisclient.Client, ttl time.Duration, clock providers.Clock) *RedisRateCache {
	if ttl <= 0 {
		ttl = DefaultRateCacheTTL
	}
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &RedisRateCache{
		client: client,
		ttl:    ttl,
		clock:  clock,
	}
}

// Get retrieves the entry for key. Redis errors and undecodable payloads are
// logged and reported as absent.
func (a *RedisRateCache) Get(ctx context.Context, key entities.RateCacheKey) entities.CacheLookup {
	entry, err := a.read(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", key.String()).Msg("redis rate cache read failed")
		}
		return entities.CacheLookup{Status: entities.CacheAbsent}
	}

	if !entry.IsValid(a.clock.Now(), a.ttl) {
		return entities.CacheLookup{Status: entities.CacheExpired, Entry: entry}
	}
	return entities.CacheLookup{Status: entities.CacheValid, Entry: entry}
}

// Put stores rows for key with expiration
func (a *RedisRateCache) Put(ctx context.Context, key entities.RateCacheKey, rows []entities.RawRateRow, fetchedAt time.Time) error {
	if rows == nil {
		rows = []entities.RawRateRow{}
	}
	data, err := json.Marshal(entities.RateCacheEntry{Rows: rows, FetchedAt: fetchedAt})
	if err != nil {
		return fmt.Errorf("failed to encode rate cache entry: %w", err)
	}
	if err := a.client.Client().Set(ctx, key.String(), data, 2*a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes the entry for key
func (a *RedisRateCache) Delete(ctx context.Context, key entities.RateCacheKey) error {
	if err := a.client.Client().Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

func (a *RedisRateCache) read(ctx context.Context, key entities.RateCacheKey) (*entities.RateCacheEntry, error) {
	data, err := a.client.Client().Get(ctx, key.String()).Bytes()
	if err != nil {
		return nil, err
	}
	var entry entities.RateCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode rate cache entry: %w", err)
	}
	return &entry, nil
}
