package services

import (
	"context"
	"strings"
	"sync"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLookupWorkers is the number of codes resolved at once.
const DefaultLookupWorkers = 4

// RateFetcher returns the dataset rows for one cache key. Implementations
// report failures as an empty row list.
type RateFetcher interface {
	Fetch(ctx context.Context, key entities.RateCacheKey) []entities.RawRateRow
}

// RateLookupService resolves billing codes to benchmark rates, preferring
// regional data and falling back to the national dataset.
type RateLookupService struct {
	fetcher RateFetcher
	workers int
}

// NewRateLookupService creates a new lookup service.
func NewRateLookupService(fetcher RateFetcher, workers int) *RateLookupService {
	if workers <= 0 {
		workers = DefaultLookupWorkers
	}
	return &RateLookupService{
		fetcher: fetcher,
		workers: workers,
	}
}

// LookupBatch resolves a caller batch.
func (s *RateLookupService) LookupBatch(ctx context.Context, batch entities.LookupBatch) entities.LookupResult {
	return s.Lookup(ctx, batch.Codes, batch.Region)
}

// Lookup resolves codes to benchmark rates. Codes without data at any tier
// are omitted. The result follows the first-seen order of codes regardless
// of which lookups finish first. A blank region means national only.
func (s *RateLookupService) Lookup(ctx context.Context, codes []string, region string) entities.LookupResult {
	result := entities.NewLookupResult()

	unique := NormalizeCodes(codes)
	if len(unique) == 0 {
		return result
	}
	region = NormalizeRegion(region)

	ctx, span := observability.StartSpan(ctx, "RateLookupService.Lookup")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Int("ratebench.codes", len(unique)),
		attribute.String("ratebench.region", region),
	)

	type outcome struct {
		rate entities.AggregatedRate
		ok   bool
	}
	outcomes := make([]outcome, len(unique))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, code := range unique {
		wg.Add(1)
		go func(idx int, code string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					observability.LoggerFromContext(ctx).Error().
						Interface("panic", r).
						Str("code", code).
						Msg("rate lookup panicked; code omitted")
				}
			}()

			rate, ok := s.resolve(ctx, code, region)
			outcomes[idx] = outcome{rate: rate, ok: ok}
		}(i, code)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.ok {
			result.Add(o.rate)
		}
	}

	observability.SetSpanAttributes(span, attribute.Int("ratebench.resolved", result.Len()))
	observability.LoggerFromContext(ctx).Debug().
		Int("requested", len(unique)).
		Int("resolved", result.Len()).
		Str("region", region).
		Msg("rate lookup finished")
	return result
}

func (s *RateLookupService) resolve(ctx context.Context, code, region string) (entities.AggregatedRate, bool) {
	if region != "" {
		rows := s.fetcher.Fetch(ctx, entities.NewRateCacheKey(code, region))
		if len(rows) > 0 {
			return AggregateRates(rows, code, region)
		}
	}

	rows := s.fetcher.Fetch(ctx, entities.NewRateCacheKey(code, entities.RegionNational))
	if len(rows) == 0 {
		return entities.AggregatedRate{}, false
	}
	return AggregateRates(rows, code, entities.RegionLabelNational)
}

// NormalizeCodes trims codes, drops blanks, and removes duplicates keeping
// the first occurrence.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// NormalizeRegion upper-cases a jurisdiction code. Blank input and the
// national sentinel both mean "no regional filter" and yield "".
func NormalizeRegion(region string) string {
	region = strings.TrimSpace(region)
	if region == "" || strings.EqualFold(region, entities.RegionNational) {
		return ""
	}
	return strings.ToUpper(region)
}
