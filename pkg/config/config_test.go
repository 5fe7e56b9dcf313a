package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RateReferenceConfig(t *testing.T) {
	t.Setenv("RATE_DATASET_URL", "http://dataset.test/data")
	t.Setenv("RATE_CACHE_TTL", "1h")
	t.Setenv("RATE_REQUEST_TIMEOUT", "3s")
	t.Setenv("RATE_POLITENESS_DELAY", "50ms")
	t.Setenv("RATE_CACHE_CAPACITY", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://dataset.test/data", cfg.RateReference.DatasetURL)
	assert.Equal(t, time.Hour, cfg.RateReference.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.RateReference.RequestTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.RateReference.PolitenessDelay)
	assert.Equal(t, 25, cfg.RateReference.CacheCapacity)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RATE_DATASET_URL", "")
	t.Setenv("RATE_CACHE_TTL", "")
	t.Setenv("RATE_REQUEST_TIMEOUT", "")
	t.Setenv("RATE_POLITENESS_DELAY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultDatasetURL, cfg.RateReference.DatasetURL)
	assert.Equal(t, 24*time.Hour, cfg.RateReference.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.RateReference.RequestTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.RateReference.PolitenessDelay)
	assert.Equal(t, 500, cfg.RateReference.PageSize)
	assert.Equal(t, "HCPCS_Cd", cfg.RateReference.CodeField)
	assert.Equal(t, "Rndrng_Prvdr_State_Abrvtn", cfg.RateReference.RegionField)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("RATE_CACHE_TTL", "tomorrow")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.RateReference.CacheTTL)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"relative dataset url", "RATE_DATASET_URL", "/data"},
		{"zero page size", "RATE_PAGE_SIZE", "0"},
		{"negative delay", "RATE_POLITENESS_DELAY", "-1s"},
		{"zero workers", "RATE_LOOKUP_WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_WarmSettings(t *testing.T) {
	t.Setenv("RATE_WARM_CODES", "99213,99214")
	t.Setenv("RATE_WARM_REGIONS", "CA")
	t.Setenv("RATE_WARM_INTERVAL", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"99213", "99214"}, cfg.RateReference.WarmCodes)
	assert.Equal(t, []string{"CA"}, cfg.RateReference.WarmRegions)
	assert.Equal(t, 2*time.Hour, cfg.RateReference.WarmInterval)

	t.Setenv("RATE_WARM_INTERVAL", "0s")
	_, err = Load()
	assert.Error(t, err)
}
