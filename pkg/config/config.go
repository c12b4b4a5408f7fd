package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campuseats/storefront/pkg/errs"
)

// Config holds all configuration options for the storefront client.
// It supports four-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Config file (JSON or YAML)
//  3. Environment variables
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := config.New(
//	    config.WithBackendURL("https://api.campuseats.example"),
//	    config.WithGuestStorage("redis", "redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Backend        BackendConfig        `json:"backend" yaml:"backend"`
	Taxonomy       TaxonomyConfig       `json:"taxonomy" yaml:"taxonomy"`
	Guest          GuestConfig          `json:"guest" yaml:"guest"`
	Dashboard      DashboardConfig      `json:"dashboard" yaml:"dashboard"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Logging        LoggingConfig        `json:"logging" yaml:"logging"`
	Telemetry      TelemetryConfig      `json:"telemetry" yaml:"telemetry"`
}

// BackendConfig points at the storefront REST service.
type BackendConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url" env:"STOREFRONT_BACKEND_URL"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"STOREFRONT_BACKEND_TIMEOUT" default:"15s"`
}

// TaxonomyConfig lists the category labels of each item kind.
// The two lists must not overlap.
type TaxonomyConfig struct {
	Retail  []string `json:"retail" yaml:"retail" env:"STOREFRONT_RETAIL_CATEGORIES"`
	Produce []string `json:"produce" yaml:"produce" env:"STOREFRONT_PRODUCE_CATEGORIES"`
	File    string   `json:"file" yaml:"file" env:"STOREFRONT_TAXONOMY_FILE"`
}

// GuestConfig controls the signed-out cart.
type GuestConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" env:"STOREFRONT_GUEST_ENABLED" default:"true"`
	Provider  string        `json:"provider" yaml:"provider" env:"STOREFRONT_GUEST_PROVIDER" default:"inmemory"`
	RedisURL  string        `json:"redis_url" yaml:"redis_url" env:"STOREFRONT_REDIS_URL,REDIS_URL"`
	Namespace string        `json:"namespace" yaml:"namespace" env:"STOREFRONT_GUEST_NAMESPACE" default:"storefront"`
	TTL       time.Duration `json:"ttl" yaml:"ttl" env:"STOREFRONT_GUEST_TTL" default:"168h"`
}

// DashboardConfig controls the vendor dashboard poller.
type DashboardConfig struct {
	PollInterval      time.Duration `json:"poll_interval" yaml:"poll_interval" env:"STOREFRONT_DASHBOARD_POLL_INTERVAL" default:"10s"`
	LowStockThreshold int           `json:"low_stock_threshold" yaml:"low_stock_threshold" env:"STOREFRONT_LOW_STOCK_THRESHOLD" default:"5"`
}

// CircuitBreakerConfig guards backend calls. While open, calls fail fast.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" env:"STOREFRONT_CB_ENABLED" default:"true"`
	Threshold        int           `json:"threshold" yaml:"threshold" env:"STOREFRONT_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"STOREFRONT_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" env:"STOREFRONT_CB_HALF_OPEN" default:"1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"STOREFRONT_LOG_LEVEL,LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"STOREFRONT_LOG_FORMAT" default:"text"`
}

// TelemetryConfig contains tracing configuration.
// Exporter "otlp" ships spans to Endpoint over gRPC; "stdout" pretty-prints them.
type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled" env:"STOREFRONT_TELEMETRY_ENABLED" default:"false"`
	Exporter     string  `json:"exporter" yaml:"exporter" env:"STOREFRONT_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME" default:"storefront"`
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" env:"STOREFRONT_TELEMETRY_SAMPLING_RATE" default:"1.0"`
}

// Option is a functional option for configuring the client.
type Option func(*Config) error

// DefaultRetailCategories and DefaultProduceCategories seed the taxonomy.
var (
	DefaultRetailCategories  = []string{"snacks", "drinks", "stationery", "essentials", "packaged"}
	DefaultProduceCategories = []string{"veg", "nonveg", "meals", "beverages-fresh", "bakery", "fruits"}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Taxonomy: TaxonomyConfig{
			Retail:  append([]string(nil), DefaultRetailCategories...),
			Produce: append([]string(nil), DefaultProduceCategories...),
		},
		Guest: GuestConfig{
			Enabled:   true,
			Provider:  "inmemory",
			Namespace: "storefront",
			TTL:       168 * time.Hour,
		},
		Dashboard: DashboardConfig{
			PollInterval:      10 * time.Second,
			LowStockThreshold: 5,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			Threshold:        5,
			Timeout:          30 * time.Second,
			HalfOpenRequests: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "otlp",
			ServiceName:  "storefront",
			SamplingRate: 1.0,
		},
	}
}

// LoadFromEnv overrides fields from environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("STOREFRONT_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("STOREFRONT_BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("STOREFRONT_BACKEND_TIMEOUT", v, err)
		}
		c.Backend.Timeout = d
	}

	if v := os.Getenv("STOREFRONT_RETAIL_CATEGORIES"); v != "" {
		c.Taxonomy.Retail = parseStringList(v)
	}
	if v := os.Getenv("STOREFRONT_PRODUCE_CATEGORIES"); v != "" {
		c.Taxonomy.Produce = parseStringList(v)
	}
	if v := os.Getenv("STOREFRONT_TAXONOMY_FILE"); v != "" {
		c.Taxonomy.File = v
	}

	if v := os.Getenv("STOREFRONT_GUEST_ENABLED"); v != "" {
		c.Guest.Enabled = parseBool(v)
	}
	if v := os.Getenv("STOREFRONT_GUEST_PROVIDER"); v != "" {
		c.Guest.Provider = v
	}
	if v := firstEnv("STOREFRONT_REDIS_URL", "REDIS_URL"); v != "" {
		c.Guest.RedisURL = v
	}
	if v := os.Getenv("STOREFRONT_GUEST_NAMESPACE"); v != "" {
		c.Guest.Namespace = v
	}
	if v := os.Getenv("STOREFRONT_GUEST_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("STOREFRONT_GUEST_TTL", v, err)
		}
		c.Guest.TTL = d
	}

	if v := os.Getenv("STOREFRONT_DASHBOARD_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("STOREFRONT_DASHBOARD_POLL_INTERVAL", v, err)
		}
		c.Dashboard.PollInterval = d
	}
	if v := os.Getenv("STOREFRONT_LOW_STOCK_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("STOREFRONT_LOW_STOCK_THRESHOLD", v, err)
		}
		c.Dashboard.LowStockThreshold = n
	}

	if v := os.Getenv("STOREFRONT_CB_ENABLED"); v != "" {
		c.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("STOREFRONT_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.Threshold = n
		}
	}
	if v := os.Getenv("STOREFRONT_CB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CircuitBreaker.Timeout = d
		}
	}
	if v := os.Getenv("STOREFRONT_CB_HALF_OPEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.HalfOpenRequests = n
		}
	}

	if v := firstEnv("STOREFRONT_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOREFRONT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("STOREFRONT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("STOREFRONT_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("STOREFRONT_TELEMETRY_SAMPLING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Telemetry.SamplingRate = f
		}
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Fields absent from the file keep their current values.
//
// Example YAML:
//
//	backend:
//	  base_url: https://api.campuseats.example
//	  timeout: 10s
//	taxonomy:
//	  retail: [snacks, drinks]
//	  produce: [meals, fruits]
//	guest:
//	  provider: redis
//	  redis_url: redis://localhost:6379/0
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, errs.ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path is operator supplied
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		var raw fileConfig
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, errs.ErrInvalidConfiguration)
		}
		return raw.apply(c)
	default:
		var raw fileConfig
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, errs.ErrInvalidConfiguration)
		}
		return raw.apply(c)
	}
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Backend base URL is required and must be absolute http(s)
//   - Retail and produce category lists must not overlap
//   - Guest provider is inmemory or redis; redis needs a URL
//   - Poll interval is positive
//   - Telemetry exporter is otlp or stdout; otlp needs an endpoint
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return &errs.Error{
			Op:       "Config.Validate",
			Category: errs.CategoryConfig,
			Message:  "backend base URL is required",
			Err:      errs.ErrMissingConfiguration,
		}
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &errs.Error{
			Op:       "Config.Validate",
			Category: errs.CategoryConfig,
			Message:  fmt.Sprintf("invalid backend base URL: %q", c.Backend.BaseURL),
			Err:      errs.ErrInvalidConfiguration,
		}
	}

	seen := make(map[string]bool, len(c.Taxonomy.Retail))
	for _, r := range c.Taxonomy.Retail {
		seen[strings.ToLower(r)] = true
	}
	for _, p := range c.Taxonomy.Produce {
		if seen[strings.ToLower(p)] {
			return &errs.Error{
				Op:       "Config.Validate",
				Category: errs.CategoryConfig,
				Message:  fmt.Sprintf("category %q is listed as both retail and produce", p),
				Err:      errs.ErrInvalidConfiguration,
			}
		}
	}

	switch c.Guest.Provider {
	case "inmemory":
	case "redis":
		if c.Guest.Enabled && c.Guest.RedisURL == "" {
			return &errs.Error{
				Op:       "Config.Validate",
				Category: errs.CategoryConfig,
				Message:  "redis URL is required for the redis guest storage provider",
				Err:      errs.ErrMissingConfiguration,
			}
		}
	default:
		return &errs.Error{
			Op:       "Config.Validate",
			Category: errs.CategoryConfig,
			Message:  fmt.Sprintf("unknown guest storage provider: %q", c.Guest.Provider),
			Err:      errs.ErrInvalidConfiguration,
		}
	}

	if c.Dashboard.PollInterval <= 0 {
		return &errs.Error{
			Op:       "Config.Validate",
			Category: errs.CategoryConfig,
			Message:  fmt.Sprintf("invalid dashboard poll interval: %s", c.Dashboard.PollInterval),
			Err:      errs.ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return &errs.Error{
					Op:       "Config.Validate",
					Category: errs.CategoryConfig,
					Message:  "telemetry endpoint is required for the otlp exporter",
					Err:      errs.ErrMissingConfiguration,
				}
			}
		default:
			return &errs.Error{
				Op:       "Config.Validate",
				Category: errs.CategoryConfig,
				Message:  fmt.Sprintf("unknown telemetry exporter: %q", c.Telemetry.Exporter),
				Err:      errs.ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

// fileConfig mirrors Config with pointer leaves so a file only overrides the
// fields it names. Durations are strings in both JSON and YAML.
type fileConfig struct {
	Backend *struct {
		BaseURL *string `json:"base_url" yaml:"base_url"`
		Timeout *string `json:"timeout" yaml:"timeout"`
	} `json:"backend" yaml:"backend"`
	Taxonomy *struct {
		Retail  []string `json:"retail" yaml:"retail"`
		Produce []string `json:"produce" yaml:"produce"`
		File    *string  `json:"file" yaml:"file"`
	} `json:"taxonomy" yaml:"taxonomy"`
	Guest *struct {
		Enabled   *bool   `json:"enabled" yaml:"enabled"`
		Provider  *string `json:"provider" yaml:"provider"`
		RedisURL  *string `json:"redis_url" yaml:"redis_url"`
		Namespace *string `json:"namespace" yaml:"namespace"`
		TTL       *string `json:"ttl" yaml:"ttl"`
	} `json:"guest" yaml:"guest"`
	Dashboard *struct {
		PollInterval      *string `json:"poll_interval" yaml:"poll_interval"`
		LowStockThreshold *int    `json:"low_stock_threshold" yaml:"low_stock_threshold"`
	} `json:"dashboard" yaml:"dashboard"`
	CircuitBreaker *struct {
		Enabled          *bool   `json:"enabled" yaml:"enabled"`
		Threshold        *int    `json:"threshold" yaml:"threshold"`
		Timeout          *string `json:"timeout" yaml:"timeout"`
		HalfOpenRequests *int    `json:"half_open_requests" yaml:"half_open_requests"`
	} `json:"circuit_breaker" yaml:"circuit_breaker"`
	Logging *struct {
		Level  *string `json:"level" yaml:"level"`
		Format *string `json:"format" yaml:"format"`
	} `json:"logging" yaml:"logging"`
	Telemetry *struct {
		Enabled      *bool    `json:"enabled" yaml:"enabled"`
		Exporter     *string  `json:"exporter" yaml:"exporter"`
		Endpoint     *string  `json:"endpoint" yaml:"endpoint"`
		ServiceName  *string  `json:"service_name" yaml:"service_name"`
		SamplingRate *float64 `json:"sampling_rate" yaml:"sampling_rate"`
	} `json:"telemetry" yaml:"telemetry"`
}

func (f *fileConfig) apply(c *Config) error {
	if b := f.Backend; b != nil {
		setString(&c.Backend.BaseURL, b.BaseURL)
		if err := setDuration(&c.Backend.Timeout, b.Timeout, "backend.timeout"); err != nil {
			return err
		}
	}
	if t := f.Taxonomy; t != nil {
		if t.Retail != nil {
			c.Taxonomy.Retail = t.Retail
		}
		if t.Produce != nil {
			c.Taxonomy.Produce = t.Produce
		}
		setString(&c.Taxonomy.File, t.File)
	}
	if g := f.Guest; g != nil {
		setBool(&c.Guest.Enabled, g.Enabled)
		setString(&c.Guest.Provider, g.Provider)
		setString(&c.Guest.RedisURL, g.RedisURL)
		setString(&c.Guest.Namespace, g.Namespace)
		if err := setDuration(&c.Guest.TTL, g.TTL, "guest.ttl"); err != nil {
			return err
		}
	}
	if d := f.Dashboard; d != nil {
		if err := setDuration(&c.Dashboard.PollInterval, d.PollInterval, "dashboard.poll_interval"); err != nil {
			return err
		}
		if d.LowStockThreshold != nil {
			c.Dashboard.LowStockThreshold = *d.LowStockThreshold
		}
	}
	if cb := f.CircuitBreaker; cb != nil {
		setBool(&c.CircuitBreaker.Enabled, cb.Enabled)
		if cb.Threshold != nil {
			c.CircuitBreaker.Threshold = *cb.Threshold
		}
		if err := setDuration(&c.CircuitBreaker.Timeout, cb.Timeout, "circuit_breaker.timeout"); err != nil {
			return err
		}
		if cb.HalfOpenRequests != nil {
			c.CircuitBreaker.HalfOpenRequests = *cb.HalfOpenRequests
		}
	}
	if l := f.Logging; l != nil {
		setString(&c.Logging.Level, l.Level)
		setString(&c.Logging.Format, l.Format)
	}
	if t := f.Telemetry; t != nil {
		setBool(&c.Telemetry.Enabled, t.Enabled)
		setString(&c.Telemetry.Exporter, t.Exporter)
		setString(&c.Telemetry.Endpoint, t.Endpoint)
		setString(&c.Telemetry.ServiceName, t.ServiceName)
		if t.SamplingRate != nil {
			c.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, *v, errs.ErrInvalidConfiguration)
	}
	*dst = d
	return nil
}

func envError(name, value string, err error) error {
	return &errs.Error{
		Op:       "Config.LoadFromEnv",
		Category: errs.CategoryConfig,
		Message:  fmt.Sprintf("%s=%q: %v", name, value, err),
		Err:      errs.ErrInvalidConfiguration,
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool accepts "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
