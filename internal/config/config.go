package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the API and the worker.
type Config struct {
	OrdersTable      string
	StoreMaxAttempts int
	IdempotencyTable string
	EventsQueueURL   string
	MetricsNamespace string
	IdempotencyTTL   time.Duration

	PortfolioServiceURL string
	AssetServiceURL     string
	CurrencyServiceURL  string
	UpstreamTimeout     time.Duration
	UpstreamMaxTries    uint
	UpstreamCacheTTL    time.Duration
	BreakerMaxFailures  uint32
	BreakerOpenTimeout  time.Duration

	HTTPAddr string
	RunLocal bool
	LogLevel string
	LogJSON  bool
}

// Load reads the configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		OrdersTable:      getenvDefault("ORDERS_TABLE", "Orders"),
		StoreMaxAttempts: getInt("DYNAMODB_MAX_ATTEMPTS", 0),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		EventsQueueURL:   os.Getenv("ORDERS_QUEUE_URL"),
		MetricsNamespace: os.Getenv("METRICS_NAMESPACE"),
		IdempotencyTTL:   getDuration("IDEMPOTENCY_TTL", 48*time.Hour),

		PortfolioServiceURL: os.Getenv("PORTFOLIO_SERVICE_URL"),
		AssetServiceURL:     os.Getenv("ASSET_SERVICE_URL"),
		CurrencyServiceURL:  os.Getenv("CURRENCY_SERVICE_URL"),
		UpstreamTimeout:     getDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		UpstreamMaxTries:    uint(getInt("UPSTREAM_MAX_TRIES", 3)),
		UpstreamCacheTTL:    getDuration("UPSTREAM_CACHE_TTL", 5*time.Minute),
		BreakerMaxFailures:  uint32(getInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout:  getDuration("BREAKER_OPEN_TIMEOUT", 10*time.Second),

		HTTPAddr: getenvDefault("HTTP_ADDR", ":8080"),
		RunLocal: os.Getenv("RUN_LOCAL") == "true",
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_FORMAT") != "console",
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
