package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/pkg/errs"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigNeedsBackendURL(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMissingConfiguration))

	cfg.Backend.BaseURL = "http://localhost:4000"
	assert.NoError(t, cfg.Validate())
}

func TestNewLayering(t *testing.T) {
	t.Setenv("STOREFRONT_BACKEND_URL", "http://env.example")
	t.Setenv("STOREFRONT_GUEST_TTL", "2h")
	t.Setenv("STOREFRONT_RETAIL_CATEGORIES", "snacks, drinks ,")

	cfg, err := New(WithBackendURL("http://option.example"), WithLogLevel("debug"))
	require.NoError(t, err)

	assert.Equal(t, "http://option.example", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.Guest.TTL)
	assert.Equal(t, []string{"snacks", "drinks"}, cfg.Taxonomy.Retail)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeFile(t, "storefront.yaml", `
backend:
  base_url: https://api.campuseats.example
  timeout: 5s
taxonomy:
  retail: [snacks]
  produce: [meals, fruits]
guest:
  provider: redis
  redis_url: redis://localhost:6379/1
dashboard:
  poll_interval: 3s
`)

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://api.campuseats.example", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"snacks"}, cfg.Taxonomy.Retail)
	assert.Equal(t, []string{"meals", "fruits"}, cfg.Taxonomy.Produce)
	assert.Equal(t, "redis", cfg.Guest.Provider)
	assert.Equal(t, 3*time.Second, cfg.Dashboard.PollInterval)
	// untouched fields keep defaults
	assert.True(t, cfg.Guest.Enabled)
	assert.Equal(t, "storefront", cfg.Guest.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromJSONFile(t *testing.T) {
	path := writeFile(t, "storefront.json", `{"backend":{"base_url":"http://localhost:4000"},"guest":{"enabled":false}}`)

	cfg, err := New(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", cfg.Backend.BaseURL)
	assert.False(t, cfg.Guest.Enabled)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.LoadFromFile("storefront.toml")
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))

	bad := writeFile(t, "bad.yaml", "backend:\n  timeout: soon\n")
	err = cfg.LoadFromFile(bad)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))

	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Backend.BaseURL = "http://localhost:4000"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"relative url", func(c *Config) { c.Backend.BaseURL = "/api" }, errs.ErrInvalidConfiguration},
		{"overlapping taxonomy", func(c *Config) { c.Taxonomy.Produce = append(c.Taxonomy.Produce, "Snacks") }, errs.ErrInvalidConfiguration},
		{"redis without url", func(c *Config) { c.Guest.Provider = "redis" }, errs.ErrMissingConfiguration},
		{"unknown provider", func(c *Config) { c.Guest.Provider = "sqlite" }, errs.ErrInvalidConfiguration},
		{"zero poll interval", func(c *Config) { c.Dashboard.PollInterval = 0 }, errs.ErrInvalidConfiguration},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, errs.ErrMissingConfiguration},
		{"unknown exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, errs.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("stdout exporter needs no endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Exporter = "stdout"
		assert.NoError(t, cfg.Validate())
	})
}

func TestOptionsRejectBadValues(t *testing.T) {
	_, err := New(WithBackendURL("http://localhost"), WithPollInterval(0))
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))

	_, err = New(WithBackendURL("http://localhost"), WithBackendTimeout(-time.Second))
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))
}

func TestOTLPEndpointEnvEnablesTelemetry(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	cfg, err := New(WithBackendURL("http://localhost"))
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, parseStringList("a, b, ,c"))
	for _, v := range []string{"true", "1", "YES", " on "} {
		assert.True(t, parseBool(v), v)
	}
	assert.False(t, parseBool("nope"))
}
