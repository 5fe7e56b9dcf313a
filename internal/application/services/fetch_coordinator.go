package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/domain/providers"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/ratebenchmark/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single outbound dataset call.
const DefaultFetchTimeout = 10 * time.Second

// FetchStats is a snapshot of coordinator activity.
type FetchStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	UpstreamCalls int64 `json:"upstream_calls"`
	Coalesced     int64 `json:"coalesced"`
	Failures      int64 `json:"failures"`
}

// FetchCoordinator owns every outbound call to the benchmark dataset. It
// serves valid cache entries, coalesces concurrent requests for the same key
// into one call, spaces distinct calls apart, and bounds each call with a
// timeout. It never returns an error: failures degrade to an empty row list.
type FetchCoordinator struct {
	provider providers.RateDatasetProvider
	cache    providers.RateCacheStore
	spacer   providers.CallSpacer
	clock    providers.Clock
	timeout  time.Duration
	metrics  *observability.Metrics

	group singleflight.Group

	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	upstreamCalls atomic.Int64
	coalesced     atomic.Int64
	failures      atomic.Int64
}

// FetchCoordinatorOption customizes a FetchCoordinator.
type FetchCoordinatorOption func(*FetchCoordinator)

// WithFetchTimeout overrides the per-call ceiling.
func WithFetchTimeout(timeout time.Duration) FetchCoordinatorOption {
	return func(c *FetchCoordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock overrides the time source used to stamp cache writes.
func WithClock(clock providers.Clock) FetchCoordinatorOption {
	return func(c *FetchCoordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics records cache and upstream metrics.
func WithMetrics(metrics *observability.Metrics) FetchCoordinatorOption {
	return func(c *FetchCoordinator) {
		c.metrics = metrics
	}
}

// NewFetchCoordinator creates a new fetch coordinator. A nil spacer disables
// politeness spacing.
func NewFetchCoordinator(
	provider providers.RateDatasetProvider,
	cache providers.RateCacheStore,
	spacer providers.CallSpacer,
	opts ...FetchCoordinatorOption,
) *FetchCoordinator {
	if spacer == nil {
		spacer = NewIntervalSpacer(0)
	}
	c := &FetchCoordinator{
		provider: provider,
		cache:    cache,
		spacer:   spacer,
		clock:    providers.SystemClock{},
		timeout:  DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the dataset rows for the key, from cache when valid.
func (c *FetchCoordinator) Fetch(ctx context.Context, key entities.RateCacheKey) []entities.RawRateRow {
	if rows, ok := c.cached(ctx, key); ok {
		c.cacheHits.Add(1)
		observability.RecordCacheHit(ctx, c.metrics, key.Region)
		return rows
	}
	c.cacheMisses.Add(1)
	observability.RecordCacheMiss(ctx, c.metrics, key.Region)

	// The flight outlives any single caller; the timeout below still bounds it.
	flightCtx := context.WithoutCancel(ctx)

	executed := false
	v, _, shared := c.group.Do(key.String(), func() (interface{}, error) {
		executed = true
		return c.fetchAndStore(flightCtx, key), nil
	})
	if shared && !executed {
		c.coalesced.Add(1)
		observability.RecordCoalescedFetch(ctx, c.metrics)
	}

	rows, _ := v.([]entities.RawRateRow)
	return rows
}

// Stats returns a snapshot of coordinator counters.
func (c *FetchCoordinator) Stats() FetchStats {
	return FetchStats{
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		UpstreamCalls: c.upstreamCalls.Load(),
		Coalesced:     c.coalesced.Load(),
		Failures:      c.failures.Load(),
	}
}

func (c *FetchCoordinator) cached(ctx context.Context, key entities.RateCacheKey) ([]entities.RawRateRow, bool) {
	if c.cache == nil {
		return nil, false
	}
	lookup := c.cache.Get(ctx, key)
	if lookup.Status != entities.CacheValid || lookup.Entry == nil {
		return nil, false
	}
	return lookup.Entry.Rows, true
}

func (c *FetchCoordinator) fetchAndStore(ctx context.Context, key entities.RateCacheKey) []entities.RawRateRow {
	logger := observability.LoggerFromContext(ctx)

	// A flight that finished just before this one started may have filled the entry.
	if rows, ok := c.cached(ctx, key); ok {
		return rows
	}

	if err := c.spacer.Wait(ctx); err != nil {
		c.failures.Add(1)
		logger.Warn().Err(err).Str("code", key.Code).Str("region", key.Region).Msg("rate dataset call not dispatched")
		return nil
	}

	region := key.Region
	if key.IsNational() {
		region = ""
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.upstreamCalls.Add(1)
	start := time.Now()
	rows, err := c.provider.FetchRateRows(callCtx, key.Code, region)
	observability.RecordUpstreamCall(ctx, c.metrics, key.Region, time.Since(start), err)
	if err != nil {
		c.failures.Add(1)
		logger.Warn().
			Err(err).
			Str("code", key.Code).
			Str("region", key.Region).
			Str("error_type", string(apperrors.TypeOf(err))).
			Dur("elapsed", time.Since(start)).
			Msg("rate dataset fetch failed; treating as no data")
		return nil
	}

	if rows == nil {
		rows = []entities.RawRateRow{}
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, rows, c.clock.Now()); err != nil {
			logger.Warn().Err(err).Str("cache_key", key.String()).Msg("failed to cache rate dataset rows")
		}
	}

	logger.Debug().
		Str("code", key.Code).
		Str("region", key.Region).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("rate dataset fetched")
	return rows
}
