package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/domain/providers"
)

// TieredRateCache consults a local tier before a shared tier. Valid shared
// hits are copied into the local tier.
type TieredRateCache struct {
	local  providers.RateCacheStore
	shared providers.RateCacheStore
}

// NewTieredRateCache creates a two-tier cache. A nil shared tier makes it
// behave like the local tier alone.
func NewTieredRateCache(local, shared providers.RateCacheStore) *TieredRateCache {
	return &TieredRateCache{local: local, shared: shared}
}

// Get returns the first valid entry across tiers. When neither tier is valid
// the newest expired entry is reported.
func (c *TieredRateCache) Get(ctx context.Context, key entities.RateCacheKey) entities.CacheLookup {
	local := c.local.Get(ctx, key)
	if local.Status == entities.CacheValid || c.shared == nil {
		return local
	}

	shared := c.shared.Get(ctx, key)
	switch shared.Status {
	case entities.CacheValid:
		_ = c.local.Put(ctx, key, shared.Entry.Rows, shared.Entry.FetchedAt)
		return shared
	case entities.CacheExpired:
		if local.Status == entities.CacheExpired && local.Entry.FetchedAt.After(shared.Entry.FetchedAt) {
			return local
		}
		return shared
	default:
		return local
	}
}

// Put writes both tiers. A shared tier failure is returned after the local
// tier has been written.
func (c *TieredRateCache) Put(ctx context.Context, key entities.RateCacheKey, rows []entities.RawRateRow, fetchedAt time.Time) error {
	if err := c.local.Put(ctx, key, rows, fetchedAt); err != nil {
		return err
	}
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Put(ctx, key, rows, fetchedAt); err != nil {
		return fmt.Errorf("shared rate cache write failed: %w", err)
	}
	return nil
}
