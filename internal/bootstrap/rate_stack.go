// Package bootstrap assembles the rate reference stack from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/zatekoja/ratebenchmark/internal/adapters/cache"
	"github.com/zatekoja/ratebenchmark/internal/application/services"
	"github.com/zatekoja/ratebenchmark/internal/domain/providers"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/clients/cmsdata"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/clients/redis"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"github.com/zatekoja/ratebenchmark/pkg/config"
	"github.com/zatekoja/ratebenchmark/pkg/retry"
)

// RateStack is the wired lookup pipeline.
type RateStack struct {
	Lookup      *services.RateLookupService
	Coordinator *services.FetchCoordinator
	Cache       providers.RateCacheStore

	redisClient *redis.Client
}

// Option customizes the stack before it is built.
type Option func(*options)

type options struct {
	provider providers.RateDatasetProvider
	clock    providers.Clock
	metrics  *observability.Metrics
}

// WithProvider replaces the CMS dataset client.
func WithProvider(provider providers.RateDatasetProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithClock replaces the system clock.
func WithClock(clock providers.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithMetrics attaches OTel instruments to the coordinator.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// NewRateStack builds the cache tiers, the dataset client and the services
// on top of them. Redis becomes the shared tier when enabled and must be
// reachable at startup.
func NewRateStack(ctx context.Context, cfg *config.Config, opts ...Option) (*RateStack, error) {
	o := options{clock: providers.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	rateCfg := cfg.RateReference
	logger := observability.LoggerFromContext(ctx)

	local, err := cache.NewMemoryRateCache(rateCfg.CacheTTL, rateCfg.CacheCapacity, o.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory rate cache: %w", err)
	}

	stack := &RateStack{}
	var store providers.RateCacheStore = local
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis, retry.StartupConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		stack.redisClient = client
		store = cache.NewTieredRateCache(local, cache.NewRedisRateCache(client, rateCfg.CacheTTL, o.clock))
		logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("rate cache backed by redis")
	}

	provider := o.provider
	if provider == nil {
		provider = cmsdata.NewClient(&rateCfg)
	}

	stack.Cache = store
	stack.Coordinator = services.NewFetchCoordinator(
		provider,
		store,
		services.NewIntervalSpacer(rateCfg.PolitenessDelay),
		services.WithFetchTimeout(rateCfg.RequestTimeout),
		services.WithClock(o.clock),
		services.WithMetrics(o.metrics),
	)
	stack.Lookup = services.NewRateLookupService(stack.Coordinator, rateCfg.Workers)

	logger.Info().
		Dur("cache_ttl", rateCfg.CacheTTL).
		Int("cache_capacity", rateCfg.CacheCapacity).
		Dur("politeness_delay", rateCfg.PolitenessDelay).
		Int("workers", rateCfg.Workers).
		Msg("rate reference stack ready")

	return stack, nil
}

// Close releases external connections.
func (s *RateStack) Close() error {
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}
