// Package config provides the unified configuration for the gallery connectors.
// A single Config structure covers fetch behavior, HTTP tuning, reliability,
// logging, and the per-provider application credentials used to sign requests.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the connector service.
type Config struct {
	// Fetch settings control the paged retrieval engine
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Timeouts define transport-level timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Apps holds the registered OAuth application credentials per provider
	Apps map[string]AppCredentials `yaml:"apps" json:"apps"`
}

// FetchConfig contains settings for the paged fetch engine and relays.
type FetchConfig struct {
	// Concurrency bounds simultaneous outstanding page fetches
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// Deadline bounds a whole multi-page retrieval; expiry yields partial results
	Deadline time.Duration `yaml:"deadline" json:"deadline"`
	// RelayDeadline bounds a single-resource streaming download
	RelayDeadline time.Duration `yaml:"relay_deadline" json:"relay_deadline"`
	// MaxQueuedItems caps discovered work before the run fails hard
	MaxQueuedItems int `yaml:"max_queued_items" json:"max_queued_items"`
	// PageSize is the default per-page record count requested from providers
	PageSize int `yaml:"page_size" json:"page_size"`
}

// TimeoutConfig contains transport timeout settings.
type TimeoutConfig struct {
	// Request timeout for one buffered HTTP call
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// PendingRetries bounds retries of 202-style "still computing" responses
	PendingRetries int `yaml:"pending_retries" json:"pending_retries"`
	// PendingDelay is the fixed delay between pending retries
	PendingDelay time.Duration `yaml:"pending_delay" json:"pending_delay"`
	// CircuitBreaker enables the circuit breaker on the shared HTTP client
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits outbound requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// AppCredentials identifies a registered OAuth application with a provider.
// Values are normally injected via ${ENV} substitution in the YAML file.
type AppCredentials struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	Scope        string `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// New creates a Config with production defaults.
func New() *Config {
	return &Config{
		Fetch: FetchConfig{
			Concurrency:    10,
			Deadline:       30 * time.Second,
			RelayDeadline:  30 * time.Second,
			MaxQueuedItems: 500,
			PageSize:       100,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       5 * time.Minute,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			PendingRetries:  10,
			PendingDelay:    2 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Apps: make(map[string]AppCredentials),
	}
}

// App returns the registered application credentials for a provider.
func (c *Config) App(provider string) AppCredentials {
	return c.Apps[provider]
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive")
	}
	if c.Fetch.Deadline <= 0 {
		return fmt.Errorf("fetch.deadline must be positive")
	}
	if c.Fetch.MaxQueuedItems <= 0 {
		return fmt.Errorf("fetch.max_queued_items must be positive")
	}
	if c.Reliability.PendingRetries < 0 {
		return fmt.Errorf("reliability.pending_retries cannot be negative")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("reliability.rate_limit_per_sec cannot be negative")
	}
	return nil
}
