package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// RegionNational is the cache/query sentinel for an unfiltered dataset query.
	RegionNational = "national"

	// RegionLabelNational is the label reported on rates resolved from the national tier.
	RegionLabelNational = "National"

	// RateSourceLabel identifies the public benchmark dataset.
	RateSourceLabel = "CMS Medicare Physician & Other Practitioners"
)

// Amount is a monetary value from the benchmark dataset. The dataset serves
// amounts as JSON numbers or numeric strings; anything else decodes to an
// invalid Amount rather than failing the whole row.
type Amount struct {
	Value float64
	Valid bool
}

// NewAmount returns a valid Amount.
func NewAmount(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// Usable reports whether the amount can take part in aggregation.
func (a Amount) Usable() bool {
	return a.Valid && !math.IsNaN(a.Value) && !math.IsInf(a.Value, 0) && a.Value > 0
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid || math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		raw = strings.TrimPrefix(raw, "$")
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	*a = Amount{Value: v, Valid: true}
	return nil
}

// RawRateRow is one provider-level record returned by the benchmark dataset.
type RawRateRow struct {
	AllowedAmount   Amount `json:"allowed_amount"`
	SubmittedCharge Amount `json:"submitted_charge"`
	PaymentAmount   Amount `json:"payment_amount"`
	Description     string `json:"description"`
	ProviderRegion  string `json:"provider_region"`
}

// RateCacheKey identifies one cached dataset query.
type RateCacheKey struct {
	Code   string
	Region string
}

// NewRateCacheKey builds a key; an empty region means the national query.
func NewRateCacheKey(code, region string) RateCacheKey {
	if region == "" {
		region = RegionNational
	}
	return RateCacheKey{Code: code, Region: region}
}

// IsNational reports whether the key addresses the unfiltered query.
func (k RateCacheKey) IsNational() bool {
	return k.Region == RegionNational
}

// String returns the storage form of the key.
func (k RateCacheKey) String() string {
	return fmt.Sprintf("ratebench:%s:%s", k.Code, k.Region)
}

// RateCacheEntry holds the rows of one dataset query and when they were fetched.
type RateCacheEntry struct {
	Rows      []RawRateRow `json:"rows"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// IsValid reports whether the entry is still fresh at now.
func (e *RateCacheEntry) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// CacheStatus is the outcome of a cache read.
type CacheStatus int

const (
	CacheAbsent CacheStatus = iota
	CacheExpired
	CacheValid
)

func (s CacheStatus) String() string {
	switch s {
	case CacheExpired:
		return "expired"
	case CacheValid:
		return "valid"
	default:
		return "absent"
	}
}

// CacheLookup is the result of a cache read. Entry is nil when Status is CacheAbsent.
type CacheLookup struct {
	Status CacheStatus
	Entry  *RateCacheEntry
}

// AggregatedRate is the benchmark digest for one billing code.
type AggregatedRate struct {
	Code                  string  `json:"code"`
	Description           string  `json:"description"`
	AllowedAmountMedian   float64 `json:"allowed_amount_median"`
	SubmittedChargeMedian float64 `json:"submitted_charge_median"`
	PaymentAmountMedian   float64 `json:"payment_amount_median"`
	SampleSize            int     `json:"sample_size"`
	Region                string  `json:"region"`
	Source                string  `json:"source"`
}

// LookupBatch is a caller's request for benchmark rates.
type LookupBatch struct {
	Codes  []string `json:"codes"`
	Region string   `json:"region,omitempty"`
}

// LookupResult maps billing codes to their benchmark rates. Codes without
// data are absent. Iteration order follows the first-seen request order.
type LookupResult struct {
	order []string
	rates map[string]AggregatedRate
}

// NewLookupResult creates an empty result.
func NewLookupResult() LookupResult {
	return LookupResult{rates: make(map[string]AggregatedRate)}
}

// Add records a rate under its code. Re-adding a code replaces the rate in place.
func (r *LookupResult) Add(rate AggregatedRate) {
	if r.rates == nil {
		r.rates = make(map[string]AggregatedRate)
	}
	if _, exists := r.rates[rate.Code]; !exists {
		r.order = append(r.order, rate.Code)
	}
	r.rates[rate.Code] = rate
}

// Get returns the rate for code, if any.
func (r LookupResult) Get(code string) (AggregatedRate, bool) {
	rate, ok := r.rates[code]
	return rate, ok
}

// Codes returns the codes with results in request order.
func (r LookupResult) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Rates returns the rates in request order.
func (r LookupResult) Rates() []AggregatedRate {
	out := make([]AggregatedRate, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.rates[code])
	}
	return out
}

// Len returns the number of codes with results.
func (r LookupResult) Len() int {
	return len(r.order)
}

// IsEmpty reports whether no code produced a result.
func (r LookupResult) IsEmpty() bool {
	return len(r.order) == 0
}

// MarshalJSON encodes the result as a code-keyed object.
func (r LookupResult) MarshalJSON() ([]byte, error) {
	if r.rates == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.rates)
}
