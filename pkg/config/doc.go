// Package config loads storefront client configuration.
//
// Layers, lowest priority first: DefaultConfig, a JSON or YAML file
// (STOREFRONT_CONFIG_FILE or WithConfigFile), STOREFRONT_* environment
// variables, and functional options. New validates the merged result and
// returns an error wrapping errs.ErrInvalidConfiguration or
// errs.ErrMissingConfiguration.
//
// Environment variables:
//
//	STOREFRONT_BACKEND_URL              backend base URL (required)
//	STOREFRONT_BACKEND_TIMEOUT          per-request timeout, e.g. 15s
//	STOREFRONT_RETAIL_CATEGORIES        comma-separated retail labels
//	STOREFRONT_PRODUCE_CATEGORIES       comma-separated produce labels
//	STOREFRONT_TAXONOMY_FILE            YAML taxonomy file
//	STOREFRONT_GUEST_ENABLED            allow signed-out carts
//	STOREFRONT_GUEST_PROVIDER           inmemory | redis
//	STOREFRONT_REDIS_URL, REDIS_URL     redis://host:port/db
//	STOREFRONT_DASHBOARD_POLL_INTERVAL  vendor dashboard polling period
//	STOREFRONT_LOG_LEVEL, LOG_LEVEL     debug | info | warn | error
//	OTEL_EXPORTER_OTLP_ENDPOINT         enables OTLP tracing
package config
