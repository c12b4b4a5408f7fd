// Package storefront wires the campus storefront client together: the backend
// client, availability resolver, single-vendor cart, favorites and the vendor
// dashboard, all built from one config.Config.
//
// Components can also be used on their own:
//   - github.com/campuseats/storefront/pkg/cart - cart guard and reconciliation
//   - github.com/campuseats/storefront/pkg/availability - vendor stock lookup
//   - github.com/campuseats/storefront/pkg/dashboard - vendor dashboard
package storefront

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/campuseats/storefront/pkg/availability"
	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/cart"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/dashboard"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/favorites"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/resilience"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/storage"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// Storefront holds every client component, sharing one logger, telemetry
// instance, backend client and local store.
type Storefront struct {
	Config    *config.Config
	Logger    logger.Logger
	Telemetry *telemetry.Telemetry
	Taxonomy  *catalog.Taxonomy
	Backend   *backend.Client
	Breaker   *resilience.CircuitBreaker
	Resolver  *availability.Resolver
	Cart      *cart.Client
	Favorites *favorites.Service
	Dashboard *dashboard.Dashboard
	Sessions  *session.Manager
	Store     storage.Store

	closers []func(context.Context) error
}

type options struct {
	logger     logger.Logger
	notifier   notify.Notifier
	store      storage.Store
	httpClient *http.Client
	telemetry  *telemetry.Telemetry
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

// WithLogger replaces the zap logger built from the logging config.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier routes user-facing messages to n instead of the log.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithStore replaces the local store selected by the guest config.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithHTTPClient replaces the backend HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTelemetry replaces the telemetry built from config.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(o *options) { o.telemetry = t }
}

// New builds a Storefront from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Storefront, error) {
	if cfg == nil {
		return nil, errs.New("storefront.New", errs.CategoryConfig, errs.ErrMissingConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Storefront{Config: cfg}

	s.Logger = o.logger
	if s.Logger == nil {
		zl, err := logger.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return nil, errs.New("storefront.New", errs.CategoryConfig, err)
		}
		s.Logger = zl
		s.closers = append(s.closers, func(context.Context) error {
			_ = zl.Sync()
			return nil
		})
	}

	s.Telemetry = o.telemetry
	if s.Telemetry == nil {
		t, err := telemetry.New(ctx, cfg.Telemetry)
		if err != nil {
			return nil, errors.Wrap(err, "init telemetry")
		}
		s.Telemetry = t
		s.closers = append(s.closers, t.Shutdown)
	}

	tax, err := buildTaxonomy(cfg.Taxonomy)
	if err != nil {
		return nil, err
	}
	s.Taxonomy = tax

	s.Store = o.store
	if s.Store == nil {
		store, closer, err := buildStore(cfg.Guest)
		if err != nil {
			return nil, err
		}
		s.Store = store
		if closer != nil {
			s.closers = append(s.closers, func(context.Context) error { return closer() })
		}
	}

	backendOpts := []backend.Option{
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(s.Logger),
		backend.WithTelemetry(s.Telemetry),
	}
	if o.httpClient != nil {
		backendOpts = append([]backend.Option{backend.WithHTTPClient(o.httpClient)}, backendOpts...)
	}
	if cfg.CircuitBreaker.Enabled {
		cb, err := resilience.NewCircuitBreaker(&resilience.Config{
			Name:             "backend",
			FailureThreshold: cfg.CircuitBreaker.Threshold,
			SleepWindow:      cfg.CircuitBreaker.Timeout,
			HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
			ErrorClassifier:  resilience.DefaultErrorClassifier,
			Logger:           s.Logger.WithField("component", "circuit_breaker"),
		})
		if err != nil {
			return nil, errs.New("storefront.New", errs.CategoryConfig, err)
		}
		s.Breaker = cb
		backendOpts = append(backendOpts, backend.WithCircuitBreaker(cb))
	}
	s.Backend = backend.New(cfg.Backend.BaseURL, backendOpts...)

	notifier := o.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: s.Logger.WithField("component", "notify")}
	}

	s.Resolver = availability.NewResolver(s.Backend,
		availability.WithLogger(s.Logger),
		availability.WithTelemetry(s.Telemetry),
	)

	var guests cart.GuestStore
	if cfg.Guest.Enabled {
		guests = cart.NewStorageGuestStore(s.Store, cfg.Guest.TTL)
	}
	s.Cart = cart.NewClient(s.Backend, s.Resolver, s.Taxonomy,
		cart.WithGuestCart(guests),
		cart.WithNotifier(notifier),
		cart.WithLogger(s.Logger),
		cart.WithTelemetry(s.Telemetry),
	)

	s.Favorites = favorites.NewService(s.Backend,
		favorites.WithNotifier(notifier),
		favorites.WithLogger(s.Logger),
		favorites.WithTelemetry(s.Telemetry),
	)

	s.Dashboard = dashboard.New(s.Backend,
		dashboard.WithPollInterval(cfg.Dashboard.PollInterval),
		dashboard.WithLowStockThreshold(cfg.Dashboard.LowStockThreshold),
		dashboard.WithNotifier(notifier),
		dashboard.WithLogger(s.Logger),
		dashboard.WithTelemetry(s.Telemetry),
	)

	s.Sessions = session.NewManager(s.Backend, storage.Namespaced(s.Store, "client"), s.Logger)

	s.Logger.Info("Storefront client initialized", map[string]interface{}{
		"backend":         cfg.Backend.BaseURL,
		"guest_enabled":   cfg.Guest.Enabled,
		"guest_provider":  cfg.Guest.Provider,
		"circuit_breaker": cfg.CircuitBreaker.Enabled,
		"version":         Version,
	})
	return s, nil
}

// NewFromOptions loads configuration with config.New and builds a Storefront.
func NewFromOptions(ctx context.Context, cfgOpts []config.Option, opts ...Option) (*Storefront, error) {
	cfg, err := config.New(cfgOpts...)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// ReAddFavorite adds a favorited item to the cart, choosing among the vendors
// it is favorited at. Call Favorites.List first to load them.
func (s *Storefront) ReAddFavorite(ctx context.Context, sess session.Session, item catalog.Item) error {
	return s.Cart.ReAddFavorite(ctx, sess, item, s.Favorites.VendorsFor(item.ID))
}

// Close stops the dashboard, detaches the cart and releases the store,
// telemetry exporter and logger.
func (s *Storefront) Close(ctx context.Context) error {
	s.Dashboard.Stop()
	s.Cart.Close()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildTaxonomy(cfg config.TaxonomyConfig) (*catalog.Taxonomy, error) {
	if cfg.File != "" {
		return catalog.LoadTaxonomy(cfg.File)
	}
	return catalog.NewTaxonomy(cfg.Retail, cfg.Produce)
}

func buildStore(cfg config.GuestConfig) (storage.Store, func() error, error) {
	if cfg.Provider != "redis" {
		return storage.NewInMemoryStore(), nil, nil
	}
	rs, err := storage.NewRedisStore(cfg.RedisURL, cfg.Namespace)
	if err != nil {
		return nil, nil, err
	}
	rs.SetTTL(cfg.TTL)
	return rs, rs.Close, nil
}
