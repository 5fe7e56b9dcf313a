package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatasetURL is the CMS data API endpoint for Medicare Physician &
// Other Practitioners by provider and service.
const DefaultDatasetURL = "https://data.cms.gov/data-api/v1/dataset/92396110-2aed-4d63-a6a2-5d6207d46a29/data"

// Config holds all application configuration
type Config struct {
	Env           string
	Server        ServerConfig
	Redis         RedisConfig
	RateReference RateReferenceConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// RateReferenceConfig holds benchmark dataset lookup configuration
type RateReferenceConfig struct {
	DatasetURL      string
	CodeField       string
	RegionField     string
	PageSize        int
	CacheTTL        time.Duration
	CacheCapacity   int
	RequestTimeout  time.Duration
	PolitenessDelay time.Duration
	Workers         int
	BreakerEnabled  bool
	WarmCodes       []string
	WarmRegions     []string
	WarmInterval    time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("LOG_ENV", "production"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateReference: RateReferenceConfig{
			DatasetURL:      getEnv("RATE_DATASET_URL", DefaultDatasetURL),
			CodeField:       getEnv("RATE_CODE_FIELD", "HCPCS_Cd"),
			RegionField:     getEnv("RATE_REGION_FIELD", "Rndrng_Prvdr_State_Abrvtn"),
			PageSize:        getEnvAsInt("RATE_PAGE_SIZE", 500),
			CacheTTL:        getEnvAsDuration("RATE_CACHE_TTL", 24*time.Hour),
			CacheCapacity:   getEnvAsInt("RATE_CACHE_CAPACITY", 10000),
			RequestTimeout:  getEnvAsDuration("RATE_REQUEST_TIMEOUT", 10*time.Second),
			PolitenessDelay: getEnvAsDuration("RATE_POLITENESS_DELAY", 200*time.Millisecond),
			Workers:         getEnvAsInt("RATE_LOOKUP_WORKERS", 4),
			BreakerEnabled:  getEnvAsBool("RATE_BREAKER_ENABLED", true),
			WarmCodes:       getEnvAsList("RATE_WARM_CODES", nil),
			WarmRegions:     getEnvAsList("RATE_WARM_REGIONS", nil),
			WarmInterval:    getEnvAsDuration("RATE_WARM_INTERVAL", 6*time.Hour),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "rate-benchmark"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.RateReference.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the lookup settings for values the service cannot run with
func (c *RateReferenceConfig) Validate() error {
	u, err := url.Parse(c.DatasetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid RATE_DATASET_URL %q", c.DatasetURL)
	}
	if c.CodeField == "" || c.RegionField == "" {
		return fmt.Errorf("dataset code and region field names are required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("RATE_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("RATE_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("RATE_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.PolitenessDelay < 0 {
		return fmt.Errorf("RATE_POLITENESS_DELAY must not be negative, got %s", c.PolitenessDelay)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("RATE_LOOKUP_WORKERS must be positive, got %d", c.Workers)
	}
	if len(c.WarmCodes) > 0 && c.WarmInterval <= 0 {
		return fmt.Errorf("RATE_WARM_INTERVAL must be positive when RATE_WARM_CODES is set, got %s", c.WarmInterval)
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerAddr returns the HTTP listen address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
