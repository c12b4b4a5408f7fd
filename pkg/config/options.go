package config

import (
	"fmt"
	"os"
	"time"

	"github.com/campuseats/storefront/pkg/errs"
)

// New builds a Config: defaults, then the file named by STOREFRONT_CONFIG_FILE
// if set, then the environment, then opts in order. The result is validated.
//
// Example:
//
//	cfg, err := config.New(
//	    config.WithConfigFile("storefront.yaml"),
//	    config.WithLogLevel("debug"),
//	)
func New(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("STOREFRONT_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// WithConfigFile loads a JSON or YAML file. Options after it override the
// file's settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithBackendURL sets the base URL of the REST backend.
func WithBackendURL(baseURL string) Option {
	return func(c *Config) error {
		c.Backend.BaseURL = baseURL
		return nil
	}
}

// WithBackendTimeout sets the per-request timeout.
func WithBackendTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return &errs.Error{
				Op:       "WithBackendTimeout",
				Category: errs.CategoryConfig,
				Message:  fmt.Sprintf("invalid timeout: %s", timeout),
				Err:      errs.ErrInvalidConfiguration,
			}
		}
		c.Backend.Timeout = timeout
		return nil
	}
}

// WithTaxonomy replaces both category lists.
func WithTaxonomy(retail, produce []string) Option {
	return func(c *Config) error {
		c.Taxonomy.Retail = retail
		c.Taxonomy.Produce = produce
		return nil
	}
}

// WithTaxonomyFile points at a YAML file with retail and produce lists.
func WithTaxonomyFile(path string) Option {
	return func(c *Config) error {
		c.Taxonomy.File = path
		return nil
	}
}

// WithGuestCart enables or disables the signed-out cart. With it disabled,
// cart mutations by a guest session fail with ErrAuthRequired.
func WithGuestCart(enabled bool) Option {
	return func(c *Config) error {
		c.Guest.Enabled = enabled
		return nil
	}
}

// WithGuestStorage selects the guest storage provider ("inmemory" or "redis").
func WithGuestStorage(provider, redisURL string) Option {
	return func(c *Config) error {
		c.Guest.Provider = provider
		c.Guest.RedisURL = redisURL
		return nil
	}
}

// WithPollInterval sets the vendor dashboard poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return &errs.Error{
				Op:       "WithPollInterval",
				Category: errs.CategoryConfig,
				Message:  fmt.Sprintf("invalid poll interval: %s", interval),
				Err:      errs.ErrInvalidConfiguration,
			}
		}
		c.Dashboard.PollInterval = interval
		return nil
	}
}

// WithCircuitBreaker configures the backend circuit breaker.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.CircuitBreaker.Enabled = threshold > 0
		c.CircuitBreaker.Threshold = threshold
		c.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTelemetry enables tracing with the given exporter and endpoint.
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}
