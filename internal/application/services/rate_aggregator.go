package services

import (
	"math"
	"sort"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
)

// AggregateRates digests raw dataset rows into one benchmark figure set for a
// code. It returns false when no row carries a usable allowed amount; submitted
// charge and payment data cannot substitute for it.
func AggregateRates(rows []entities.RawRateRow, code, regionLabel string) (entities.AggregatedRate, bool) {
	allowed := make([]float64, 0, len(rows))
	submitted := make([]float64, 0, len(rows))
	payment := make([]float64, 0, len(rows))

	for _, row := range rows {
		if row.AllowedAmount.Usable() {
			allowed = append(allowed, row.AllowedAmount.Value)
		}
		if row.SubmittedCharge.Usable() {
			submitted = append(submitted, row.SubmittedCharge.Value)
		}
		if row.PaymentAmount.Usable() {
			payment = append(payment, row.PaymentAmount.Value)
		}
	}

	if len(allowed) == 0 {
		return entities.AggregatedRate{}, false
	}

	description := ""
	if len(rows) > 0 {
		description = rows[0].Description
	}

	return entities.AggregatedRate{
		Code:                  code,
		Description:           description,
		AllowedAmountMedian:   RoundCents(Median(allowed)),
		SubmittedChargeMedian: RoundCents(Median(submitted)),
		PaymentAmountMedian:   RoundCents(Median(payment)),
		SampleSize:            len(allowed),
		Region:                regionLabel,
		Source:                entities.RateSourceLabel,
	}, true
}

// Median returns the middle value of values, averaging the two middle values
// for even lengths. An empty slice yields 0. The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
