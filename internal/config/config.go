package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	APIKey     string `envconfig:"API_KEY"`
	APIBaseURL string `envconfig:"API_BASE_URL" default:"https://developers.teachable.com/v1"`

	OutputDir string `envconfig:"OUTPUT_DIR" default:"./courses"`

	MaxConcurrentDownloads int           `envconfig:"MAX_CONCURRENT_DOWNLOADS" default:"3"`
	RequestTimeout         time.Duration `envconfig:"REQUEST_TIMEOUT" default:"2m"`

	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	RetryMaxBackoff  time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"1m"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`

	RateLimitFallbackDelay time.Duration `envconfig:"RATE_LIMIT_FALLBACK_DELAY" default:"20s"`

	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"30s"`

	// StatusAddr serves /health, /metrics and /progress; empty disables it.
	StatusAddr string `envconfig:"STATUS_ADDR" default:":8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key must be set (CF_API_KEY)")
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	if c.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("max concurrent downloads must be at least 1: %d", c.MaxConcurrentDownloads)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1: %d", c.RetryMaxAttempts)
	}

	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive: %s", c.RetryBaseDelay)
	}

	if c.RetryMaxBackoff < c.RetryBaseDelay {
		return fmt.Errorf("retry max backoff %s is below the base delay %s", c.RetryMaxBackoff, c.RetryBaseDelay)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive: %s", c.RequestTimeout)
	}

	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown grace cannot be negative: %s", c.ShutdownGrace)
	}

	return nil
}
