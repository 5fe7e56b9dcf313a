package cmsdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/ratebenchmark/pkg/config"
	apperrors "github.com/zatekoja/ratebenchmark/pkg/errors"
)

func testConfig(url string) *config.RateReferenceConfig {
	return &config.RateReferenceConfig{
		DatasetURL:     url,
		CodeField:      "HCPCS_Cd",
		RegionField:    "Rndrng_Prvdr_State_Abrvtn",
		PageSize:       500,
		RequestTimeout: 2 * time.Second,
	}
}

func TestFetchRateRows_RegionalQuery(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"HCPCS_Desc": "Established patient office visit", "Avg_Mdcr_Alowd_Amt": "100.5", "Avg_Sbmtd_Chrg": 150, "Avg_Mdcr_Pymt_Amt": "90.25", "Rndrng_Prvdr_State_Abrvtn": "CA"},
			{"HCPCS_Desc": "Established patient office visit", "Avg_Mdcr_Alowd_Amt": "n/a", "Avg_Sbmtd_Chrg": "", "Rndrng_Prvdr_State_Abrvtn": "CA"}
		]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	rows, err := client.FetchRateRows(context.Background(), "99213", "CA")
	require.NoError(t, err)

	assert.Equal(t, []string{"99213"}, gotQuery["filter[HCPCS_Cd]"])
	assert.Equal(t, []string{"CA"}, gotQuery["filter[Rndrng_Prvdr_State_Abrvtn]"])
	assert.Equal(t, []string{"500"}, gotQuery["size"])

	require.Len(t, rows, 2)
	assert.Equal(t, "Established patient office visit", rows[0].Description)
	assert.Equal(t, "CA", rows[0].ProviderRegion)
	assert.True(t, rows[0].AllowedAmount.Usable())
	assert.Equal(t, 100.5, rows[0].AllowedAmount.Value)
	assert.Equal(t, 150.0, rows[0].SubmittedCharge.Value)
	assert.Equal(t, 90.25, rows[0].PaymentAmount.Value)

	assert.False(t, rows[1].AllowedAmount.Usable())
	assert.False(t, rows[1].SubmittedCharge.Usable())
	assert.False(t, rows[1].PaymentAmount.Valid)
}

func TestFetchRateRows_NationalQueryOmitsRegionFilter(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	rows, err := NewClient(testConfig(server.URL)).FetchRateRows(context.Background(), "99214", "")
	require.NoError(t, err)

	assert.Empty(t, rows)
	assert.NotContains(t, gotQuery, "filter[Rndrng_Prvdr_State_Abrvtn]")
	assert.Equal(t, []string{"99214"}, gotQuery["filter[HCPCS_Cd]"])
}

func TestFetchRateRows_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType apperrors.ErrorType
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, apperrors.ErrorTypeExternal},
		{"throttled", http.StatusTooManyRequests, ``, apperrors.ErrorTypeExternal},
		{"not json", http.StatusOK, `<html>maintenance</html>`, apperrors.ErrorTypeMalformed},
		{"object instead of array", http.StatusOK, `{"data": []}`, apperrors.ErrorTypeMalformed},
		{"array of scalars", http.StatusOK, `[1, 2, 3]`, apperrors.ErrorTypeMalformed},
		{"truncated", http.StatusOK, `[{"HCPCS_Desc": "x"`, apperrors.ErrorTypeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			rows, err := NewClient(testConfig(server.URL)).FetchRateRows(context.Background(), "99213", "")
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestFetchRateRows_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RequestTimeout = 50 * time.Millisecond

	_, err := NewClient(cfg).FetchRateRows(context.Background(), "99213", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestFetchRateRows_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BreakerEnabled = true
	client := NewClient(cfg)

	for i := 0; i < 5; i++ {
		_, err := client.FetchRateRows(context.Background(), "99213", "")
		require.Error(t, err)
	}
	require.Equal(t, int32(5), hits.Load())

	_, err := client.FetchRateRows(context.Background(), "99213", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Equal(t, int32(5), hits.Load(), "open breaker must not reach the dataset")
}

func TestFetchRateRows_MalformedAnswersDoNotOpenBreaker(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if healthy.Load() {
			w.Write([]byte(`[{"HCPCS_Desc": "Office visit", "Avg_Mdcr_Alowd_Amt": "80"}]`))
			return
		}
		w.Write([]byte(`{"message": "unexpected shape"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BreakerEnabled = true
	client := NewClient(cfg)

	for i := 0; i < 6; i++ {
		_, err := client.FetchRateRows(context.Background(), "99213", "")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformed))
	}

	healthy.Store(true)
	rows, err := client.FetchRateRows(context.Background(), "99213", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Office visit", rows[0].Description)
}

func TestQueryURL_KeepsExistingParameters(t *testing.T) {
	client := NewClient(testConfig("https://data.example.test/dataset/abc/data?keyword=x"))

	got, err := client.QueryURL("99213", "NY")
	require.NoError(t, err)
	assert.Contains(t, got, "keyword=x")
	assert.Contains(t, got, "size=500")
	assert.Contains(t, got, "filter%5BHCPCS_Cd%5D=99213")
	assert.Contains(t, got, "filter%5BRndrng_Prvdr_State_Abrvtn%5D=NY")
}
