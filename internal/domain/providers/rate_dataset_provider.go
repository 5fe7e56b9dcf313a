package providers

import (
	"context"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
)

// RateDatasetProvider defines the interface for the public benchmark dataset
type RateDatasetProvider interface {
	// FetchRateRows performs one outbound query. An empty region means the
	// national (unfiltered) query. A well-formed empty dataset is not an error.
	FetchRateRows(ctx context.Context, code, region string) ([]entities.RawRateRow, error)
}

// CallSpacer enforces a minimum delay between distinct outbound calls
type CallSpacer interface {
	Wait(ctx context.Context) error
}
