package providers

import (
	"context"
	"time"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
)

// RateCacheStore defines the interface for caching benchmark dataset rows
type RateCacheStore interface {
	// Get reports whether the key is absent, expired, or valid
	Get(ctx context.Context, key entities.RateCacheKey) entities.CacheLookup

	// Put stores rows fetched at fetchedAt, replacing any previous entry
	Put(ctx context.Context, key entities.RateCacheKey, rows []entities.RawRateRow, fetchedAt time.Time) error
}

// Clock is the time source used for cache freshness
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}
