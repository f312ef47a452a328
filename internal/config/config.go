package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunable engine settings. Defaults match production; every
// field can be overridden through the environment variable named in FromEnv.
type Config struct {
	Port          string
	DatabaseURL   string
	CronSecret    string
	SessionSecret string

	CrawlBatchLimit    int
	MaxCrawlBatchLimit int
	CrawlWorkers       int

	CrawlLease         time.Duration
	CrawlLockTTL       time.Duration
	DigestLockTTL      time.Duration
	FetchTimeout       time.Duration
	MaxHTMLLength      int
	SuccessDelay       time.Duration
	ErrorBackoff       time.Duration
	BlockedBackoff     time.Duration
	ManualBackoff      time.Duration
	DigestLookback     time.Duration
	DigestMaxDiffs     int
	RateLimitPerWindow int
	RateLimitWindow    time.Duration

	// Discovery recommendation thresholds; empirically chosen, kept
	// configurable rather than baked into the scorer.
	DiscoveryPrimaryMinConfidence float64
	DiscoveryPrimaryMinGap        float64
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Port:                          "8080",
		CrawlBatchLimit:               3,
		MaxCrawlBatchLimit:            20,
		CrawlWorkers:                  1,
		CrawlLease:                    6 * time.Minute,
		CrawlLockTTL:                  8 * time.Minute,
		DigestLockTTL:                 45 * time.Minute,
		FetchTimeout:                  15 * time.Second,
		MaxHTMLLength:                 1_000_000,
		SuccessDelay:                  24 * time.Hour,
		ErrorBackoff:                  6 * time.Hour,
		BlockedBackoff:                36 * time.Hour,
		ManualBackoff:                 48 * time.Hour,
		DigestLookback:                7 * 24 * time.Hour,
		DigestMaxDiffs:                30,
		RateLimitPerWindow:            20,
		RateLimitWindow:               time.Minute,
		DiscoveryPrimaryMinConfidence: 0.86,
		DiscoveryPrimaryMinGap:        0.08,
	}
}

// FromEnv builds a Config from the environment on top of Default.
func FromEnv() *Config {
	cfg := Default()

	cfg.Port = envString("PORT", cfg.Port)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.CronSecret = os.Getenv("CRON_SECRET")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")

	cfg.CrawlBatchLimit = envInt("CRAWL_BATCH_LIMIT", cfg.CrawlBatchLimit)
	cfg.CrawlWorkers = envInt("CRAWL_WORKERS", cfg.CrawlWorkers)
	if cfg.CrawlWorkers < 1 {
		cfg.CrawlWorkers = 1
	}
	if cfg.CrawlWorkers > 4 {
		cfg.CrawlWorkers = 4
	}

	cfg.CrawlLease = envMillis("CRAWL_LEASE_MS", cfg.CrawlLease)
	cfg.CrawlLockTTL = envMillis("CRAWL_LOCK_TTL_MS", cfg.CrawlLockTTL)
	cfg.DigestLockTTL = envMillis("DIGEST_LOCK_TTL_MS", cfg.DigestLockTTL)
	cfg.FetchTimeout = envMillis("CRAWL_FETCH_TIMEOUT_MS", cfg.FetchTimeout)
	cfg.MaxHTMLLength = envInt("CRAWL_MAX_HTML_LENGTH", cfg.MaxHTMLLength)
	cfg.SuccessDelay = envMillis("CRAWL_SUCCESS_DELAY_MS", cfg.SuccessDelay)
	cfg.ErrorBackoff = envMillis("CRAWL_ERROR_BACKOFF_MS", cfg.ErrorBackoff)
	cfg.BlockedBackoff = envMillis("CRAWL_BLOCKED_BACKOFF_MS", cfg.BlockedBackoff)
	cfg.ManualBackoff = envMillis("CRAWL_MANUAL_BACKOFF_MS", cfg.ManualBackoff)

	cfg.DiscoveryPrimaryMinConfidence = envFloat("DISCOVERY_PRIMARY_MIN_CONFIDENCE", cfg.DiscoveryPrimaryMinConfidence)
	cfg.DiscoveryPrimaryMinGap = envFloat("DISCOVERY_PRIMARY_MIN_GAP", cfg.DiscoveryPrimaryMinGap)

	return cfg
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
