package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
)

const rateReferenceHeader = "MEDICARE BENCHMARK RATES (" + entities.RateSourceLabel + ", medians of provider averages):"

const rateReferenceTrailer = `How to use these figures: the Medicare allowed amount is the public benchmark for what a procedure is reasonably worth; commercial prices commonly run above it. Compare each billed line against its benchmark. A billed charge above 2x the median submitted charge for the same code is a likely overcharge and worth disputing. Small samples (low n) are less reliable, and "National" means no data existed for the requested state.`

// FormatRateReference renders a lookup result as a text block for a
// downstream prompt. It returns false when there is nothing to emit.
func FormatRateReference(result entities.LookupResult) (string, bool) {
	if result.IsEmpty() {
		return "", false
	}

	var b strings.Builder
	b.WriteString(rateReferenceHeader)
	b.WriteString("\n")
	for _, rate := range result.Rates() {
		b.WriteString(FormatRateLine(rate))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(rateReferenceTrailer)
	return b.String(), true
}

// FormatRateLine renders one benchmark line.
func FormatRateLine(rate entities.AggregatedRate) string {
	description := strings.Join(strings.Fields(rate.Description), " ")
	if description == "" {
		description = "description unavailable"
	}
	return fmt.Sprintf("- CPT %s (%s): Medicare allowed $%.2f , avg submitted $%.2f (%s, n=%d)",
		rate.Code,
		description,
		rate.AllowedAmountMedian,
		rate.SubmittedChargeMedian,
		rate.Region,
		rate.SampleSize,
	)
}
