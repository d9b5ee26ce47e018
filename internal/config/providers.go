package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

//go:embed providers.yaml
var defaultProviders []byte

// ProvidersConfig represents the complete pair-listing fetch configuration
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Global    GlobalConfig              `yaml:"global"`
}

// ProviderConfig represents configuration for a single exchange endpoint
type ProviderConfig struct {
	URL        string        `yaml:"url"`
	Enabled    bool          `yaml:"enabled"`
	RPS        float64       `yaml:"rps"`         // Requests per second
	Burst      int           `yaml:"burst"`       // Burst capacity
	MaxRetries int           `yaml:"max_retries"` // Retries after the first attempt
	BackoffMS  BackoffConfig `yaml:"backoff_ms"`  // Backoff configuration
	Circuit    CircuitConfig `yaml:"circuit"`     // Circuit breaker config
}

// BackoffConfig represents exponential backoff configuration
type BackoffConfig struct {
	Base int `yaml:"base"` // Base backoff in milliseconds
	Max  int `yaml:"max"`  // Maximum backoff in milliseconds
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"` // Consecutive failures to open circuit
	OpenMS           int `yaml:"open_ms"`           // Time the circuit stays open
}

// GlobalConfig represents settings shared by every provider
type GlobalConfig struct {
	MaxConcurrent    int    `yaml:"max_concurrent"`     // Concurrent exchange fetches
	UserAgent        string `yaml:"user_agent"`         // User agent for all requests
	RequestTimeoutMS int    `yaml:"request_timeout_ms"` // Per-request timeout
}

// DefaultProvidersConfig returns the embedded provider configuration
func DefaultProvidersConfig() (*ProvidersConfig, error) {
	return ParseProvidersConfig(defaultProviders)
}

// LoadProvidersConfig loads provider configuration from YAML file
func LoadProvidersConfig(configPath string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers config: %w", err)
	}
	return ParseProvidersConfig(data)
}

// ParseProvidersConfig decodes and validates provider configuration
func ParseProvidersConfig(data []byte) (*ProvidersConfig, error) {
	var config ProvidersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse providers config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid providers config: %w", err)
	}

	return &config, nil
}

// Validate ensures the configuration is valid and consistent
func (c *ProvidersConfig) Validate() error {
	if c.Global.MaxConcurrent <= 0 {
		return fmt.Errorf("global max_concurrent must be positive, got %d", c.Global.MaxConcurrent)
	}
	if c.Global.UserAgent == "" {
		return fmt.Errorf("global user_agent cannot be empty")
	}
	if c.Global.RequestTimeoutMS <= 0 {
		return fmt.Errorf("global request_timeout_ms must be positive, got %d", c.Global.RequestTimeoutMS)
	}

	for name, provider := range c.Providers {
		if _, err := exchange.Parse(name); err != nil {
			return fmt.Errorf("providers: %w", err)
		}
		if err := provider.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	for _, ex := range exchange.All() {
		if _, ok := c.Providers[ex.String()]; !ok {
			return fmt.Errorf("providers: missing entry for %s", ex)
		}
	}

	return nil
}

// Validate ensures a provider configuration is valid
func (p *ProviderConfig) Validate() error {
	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http(s), got %q", p.URL)
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %v", p.RPS)
	}
	if p.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", p.Burst)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", p.MaxRetries)
	}

	if err := p.BackoffMS.Validate(); err != nil {
		return fmt.Errorf("backoff_ms: %w", err)
	}

	if err := p.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}

	return nil
}

// Validate ensures backoff configuration is valid
func (b *BackoffConfig) Validate() error {
	if b.Base <= 0 {
		return fmt.Errorf("base must be positive, got %d", b.Base)
	}
	if b.Max < b.Base {
		return fmt.Errorf("max (%d) must be >= base (%d)", b.Max, b.Base)
	}
	return nil
}

// Validate ensures circuit breaker configuration is valid
func (c *CircuitConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.OpenMS <= 0 {
		return fmt.Errorf("open_ms must be positive, got %d", c.OpenMS)
	}
	return nil
}

// Provider returns the configuration for ex
func (c *ProvidersConfig) Provider(ex exchange.Exchange) ProviderConfig {
	return c.Providers[ex.String()]
}

// RequestTimeout returns the per-request timeout as a time.Duration
func (c *ProvidersConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Global.RequestTimeoutMS) * time.Millisecond
}

// GetBaseBackoff returns the base backoff as a time.Duration
func (p *ProviderConfig) GetBaseBackoff() time.Duration {
	return time.Duration(p.BackoffMS.Base) * time.Millisecond
}

// GetMaxBackoff returns the maximum backoff as a time.Duration
func (p *ProviderConfig) GetMaxBackoff() time.Duration {
	return time.Duration(p.BackoffMS.Max) * time.Millisecond
}

// GetOpenTimeout returns how long an open circuit rejects requests
func (p *ProviderConfig) GetOpenTimeout() time.Duration {
	return time.Duration(p.Circuit.OpenMS) * time.Millisecond
}

// Host returns the host part of the provider URL, used to key rate limiters
func (p *ProviderConfig) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return p.URL
	}
	return u.Host
}

// WithURL returns a copy of c with ex pointed at rawURL
func (c *ProvidersConfig) WithURL(ex exchange.Exchange, rawURL string) *ProvidersConfig {
	out := *c
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		out.Providers[name] = p
	}
	p := out.Providers[ex.String()]
	p.URL = rawURL
	out.Providers[ex.String()] = p
	return &out
}
