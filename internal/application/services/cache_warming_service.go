package services

import (
	"context"
	"time"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
)

// RateLookuper resolves a batch of codes for one region.
type RateLookuper interface {
	Lookup(ctx context.Context, codes []string, region string) entities.LookupResult
}

// CacheWarmingService keeps frequently requested codes resident in the rate
// cache by looking them up ahead of user traffic.
type CacheWarmingService struct {
	lookup  RateLookuper
	codes   []string
	regions []string
}

// NewCacheWarmingService creates a new cache warming service. The national
// tier is always warmed; regions adds state tiers on top of it.
func NewCacheWarmingService(lookup RateLookuper, codes, regions []string) *CacheWarmingService {
	normalized := []string{""}
	seen := map[string]bool{"": true}
	for _, region := range regions {
		region = NormalizeRegion(region)
		if seen[region] {
			continue
		}
		seen[region] = true
		normalized = append(normalized, region)
	}

	return &CacheWarmingService{
		lookup:  lookup,
		codes:   NormalizeCodes(codes),
		regions: normalized,
	}
}

// WarmCache looks up every configured code in every configured region and
// returns how many (code, region) pairs produced a rate.
func (s *CacheWarmingService) WarmCache(ctx context.Context) int {
	logger := observability.LoggerFromContext(ctx)
	if len(s.codes) == 0 {
		return 0
	}

	start := time.Now()
	resolved := 0
	for _, region := range s.regions {
		if ctx.Err() != nil {
			break
		}
		resolved += s.lookup.Lookup(ctx, s.codes, region).Len()
	}

	logger.Info().
		Int("codes", len(s.codes)).
		Int("regions", len(s.regions)).
		Int("resolved", resolved).
		Dur("duration", time.Since(start)).
		Msg("Rate cache warming completed")
	return resolved
}

// StartPeriodicWarming warms once, then again every interval until ctx is done.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	logger := observability.LoggerFromContext(ctx)
	if len(s.codes) == 0 || interval <= 0 {
		return
	}

	go func() {
		s.WarmCache(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("Stopping rate cache warming")
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("Started periodic rate cache warming")
}
