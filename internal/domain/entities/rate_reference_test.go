package entities

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw       string
		wantValid bool
		wantValue float64
	}{
		{`100.25`, true, 100.25},
		{`"100.25"`, true, 100.25},
		{`" 1,250.50 "`, true, 1250.5},
		{`"$75"`, true, 75},
		{`-3`, true, -3},
		{`null`, false, 0},
		{`""`, false, 0},
		{`"n/a"`, false, 0},
		{`true`, false, 0},
		{`{"value": 1}`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			assert.Equal(t, tt.wantValid, a.Valid)
			assert.Equal(t, tt.wantValue, a.Value)
		})
	}
}

func TestAmount_Usable(t *testing.T) {
	assert.True(t, NewAmount(0.01).Usable())
	assert.False(t, NewAmount(0).Usable())
	assert.False(t, NewAmount(-12).Usable())
	assert.False(t, NewAmount(math.NaN()).Usable())
	assert.False(t, NewAmount(math.Inf(1)).Usable())
	assert.False(t, Amount{Value: 50}.Usable(), "an invalid amount is never usable")
}

func TestRateCacheEntry_JSONRoundTripKeepsInvalidAmounts(t *testing.T) {
	entry := RateCacheEntry{
		Rows: []RawRateRow{{
			AllowedAmount:   NewAmount(99.5),
			SubmittedCharge: Amount{},
			PaymentAmount:   NewAmount(-1),
			Description:     "Visit",
		}},
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded RateCacheEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, entry, decoded)
}

func TestRateCacheEntry_IsValid(t *testing.T) {
	fetched := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := RateCacheEntry{FetchedAt: fetched}

	assert.True(t, entry.IsValid(fetched.Add(time.Hour-time.Nanosecond), time.Hour))
	assert.False(t, entry.IsValid(fetched.Add(time.Hour), time.Hour))
}

func TestRateCacheKey(t *testing.T) {
	national := NewRateCacheKey("99213", "")
	assert.True(t, national.IsNational())
	assert.Equal(t, "ratebench:99213:national", national.String())

	regional := NewRateCacheKey("99213", "CA")
	assert.False(t, regional.IsNational())
	assert.Equal(t, "ratebench:99213:CA", regional.String())
	assert.NotEqual(t, national, regional)
}

func TestLookupResult_OrderAndReplace(t *testing.T) {
	result := NewLookupResult()
	assert.True(t, result.IsEmpty())

	result.Add(AggregatedRate{Code: "B", AllowedAmountMedian: 1})
	result.Add(AggregatedRate{Code: "A", AllowedAmountMedian: 2})
	result.Add(AggregatedRate{Code: "B", AllowedAmountMedian: 3})

	assert.Equal(t, []string{"B", "A"}, result.Codes())
	assert.Equal(t, 2, result.Len())
	rate, ok := result.Get("B")
	require.True(t, ok)
	assert.Equal(t, 3.0, rate.AllowedAmountMedian)
}

func TestLookupResult_ZeroValueIsUsable(t *testing.T) {
	var result LookupResult
	assert.True(t, result.IsEmpty())
	_, ok := result.Get("X")
	assert.False(t, ok)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	result.Add(AggregatedRate{Code: "X"})
	assert.Equal(t, 1, result.Len())
}

func TestCacheStatus_String(t *testing.T) {
	assert.Equal(t, "absent", CacheAbsent.String())
	assert.Equal(t, "expired", CacheExpired.String())
	assert.Equal(t, "valid", CacheValid.String())
}
