package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/campuseats/storefront/pkg/availability"
	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/poll"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/telemetry"
)

const (
	DefaultPollInterval      = 10 * time.Second
	DefaultLowStockThreshold = 5
)

// API is the backend surface the dashboard uses. backend.Client satisfies it.
type API interface {
	ActiveOrders(ctx context.Context, sess session.Session, vendorID string) ([]backend.Order, error)
	VendorInventory(ctx context.Context, sess session.Session, vendorID string) ([]backend.InventoryEntry, error)
	UpdateOrderStatus(ctx context.Context, sess session.Session, orderID, status string) error
	SetInventory(ctx context.Context, sess session.Session, vendorID, itemID string, update backend.InventoryUpdate) error
}

// Snapshot is the dashboard state from the last successful poll.
type Snapshot struct {
	VendorID  string
	Orders    []backend.Order
	Inventory []backend.InventoryEntry
	FetchedAt time.Time
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Orders = append([]backend.Order(nil), s.Orders...)
	out.Inventory = append([]backend.InventoryEntry(nil), s.Inventory...)
	return out
}

// Dashboard polls a vendor's active orders and inventory.
type Dashboard struct {
	api       API
	interval  time.Duration
	threshold int
	onUpdate  func(Snapshot)
	notifier  notify.Notifier
	logger    logger.Logger
	telemetry *telemetry.Telemetry

	mu       sync.RWMutex
	sess     session.Session
	vendorID string
	snapshot Snapshot
	lastErr  error
	poller   *poll.Poller
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithPollInterval sets how often the dashboard polls.
func WithPollInterval(d time.Duration) Option {
	return func(db *Dashboard) { db.interval = d }
}

// WithLowStockThreshold sets the default threshold used by LowStock.
func WithLowStockThreshold(n int) Option {
	return func(db *Dashboard) { db.threshold = n }
}

// WithOnUpdate registers fn to be called with every new snapshot.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(db *Dashboard) { db.onUpdate = fn }
}

// WithNotifier sets the notifier that receives user-facing messages.
func WithNotifier(n notify.Notifier) Option {
	return func(db *Dashboard) { db.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(db *Dashboard) { db.logger = l.WithField("component", "dashboard") }
}

// WithTelemetry sets the tracer and metric instruments.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(db *Dashboard) { db.telemetry = t }
}

// New creates a stopped dashboard.
func New(api API, opts ...Option) *Dashboard {
	db := &Dashboard{
		api:       api,
		interval:  DefaultPollInterval,
		threshold: DefaultLowStockThreshold,
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.notifier == nil {
		db.notifier = notify.LogNotifier{Logger: db.logger}
	}
	return db
}

// Start begins polling vendorID's orders and inventory on behalf of sess.
// The first poll runs immediately.
func (d *Dashboard) Start(ctx context.Context, sess session.Session, vendorID string) error {
	if !sess.IsAuthenticated() {
		return errs.New("dashboard.Start", errs.CategoryAuthRequired, errs.ErrAuthRequired)
	}
	if vendorID == "" {
		return &errs.Error{
			Op:       "dashboard.Start",
			Category: errs.CategoryPrecondition,
			Message:  "vendor id is required",
			Err:      errs.ErrPreconditionFailed,
		}
	}

	d.mu.Lock()
	if d.poller != nil && d.poller.Running() {
		d.mu.Unlock()
		return poll.ErrRunning
	}
	d.sess = sess
	d.vendorID = vendorID
	d.snapshot = Snapshot{VendorID: vendorID}
	d.poller = poll.New(d.interval, d.Refresh,
		poll.WithName("dashboard"),
		poll.WithLogger(d.logger),
		poll.WithTelemetry(d.telemetry),
	)
	p := d.poller
	d.mu.Unlock()

	d.logger.Info("Dashboard started", map[string]interface{}{
		"vendor_id": vendorID,
		"interval":  d.interval.String(),
	})
	return p.Start(ctx)
}

// Stop stops polling and waits for a poll in flight to finish.
func (d *Dashboard) Stop() {
	d.mu.RLock()
	p := d.poller
	d.mu.RUnlock()
	if p != nil {
		p.Stop()
	}
}

// Snapshot returns a copy of the latest state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot.clone()
}

// LastError returns the error of the most recent poll, or nil if it
// succeeded.
func (d *Dashboard) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Refresh fetches orders and inventory concurrently and swaps in a new
// snapshot. On failure the previous snapshot is kept.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.RLock()
	sess, vendorID := d.sess, d.vendorID
	d.mu.RUnlock()
	if vendorID == "" {
		return notStarted("dashboard.Refresh")
	}

	ctx, span := d.telemetry.StartSpan(ctx, "dashboard.Refresh", attribute.String("vendor.id", vendorID))
	defer span.End()

	var (
		orders    []backend.Order
		inventory []backend.InventoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = d.api.ActiveOrders(gctx, sess, vendorID)
		return err
	})
	g.Go(func() error {
		var err error
		inventory, err = d.api.VendorInventory(gctx, sess, vendorID)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	if d.vendorID != vendorID {
		d.mu.Unlock()
		return nil
	}
	d.lastErr = err
	if err != nil {
		d.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.MessageOf(err))
		return err
	}

	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	d.snapshot = Snapshot{
		VendorID:  vendorID,
		Orders:    orders,
		Inventory: inventory,
		FetchedAt: time.Now(),
	}
	snap := d.snapshot.clone()
	d.mu.Unlock()

	span.SetAttributes(
		attribute.Int("orders.count", len(orders)),
		attribute.Int("inventory.count", len(inventory)),
	)
	span.SetStatus(codes.Ok, "")
	if d.onUpdate != nil {
		d.onUpdate(snap)
	}
	return nil
}

// UpdateOrderStatus moves an order to status and schedules a refresh.
func (d *Dashboard) UpdateOrderStatus(ctx context.Context, sess session.Session, orderID, status string) error {
	ctx = telemetry.EnsureCorrelationID(ctx)
	if status == "" {
		return d.fail(ctx, "UpdateOrderStatus", &errs.Error{
			Op:       "dashboard.UpdateOrderStatus",
			Category: errs.CategoryPrecondition,
			ID:       orderID,
			Message:  "status is required",
			Err:      errs.ErrPreconditionFailed,
		})
	}
	if err := d.api.UpdateOrderStatus(ctx, sess, orderID, status); err != nil {
		return d.fail(ctx, "UpdateOrderStatus", err)
	}
	d.notifier.Notify(ctx, notify.Notification{Level: notify.Success, Message: fmt.Sprintf("Order marked %s", status)})
	d.refreshSoon(ctx)
	return nil
}

// SetInventory replaces the stock of itemID at the dashboard's vendor. value
// must be a quantity for Retail items and a "Y"/"N" flag for Produce.
func (d *Dashboard) SetInventory(ctx context.Context, sess session.Session, itemID string, kind catalog.Kind, value catalog.InventoryValue) error {
	ctx = telemetry.EnsureCorrelationID(ctx)

	d.mu.RLock()
	vendorID := d.vendorID
	d.mu.RUnlock()
	if vendorID == "" {
		return d.fail(ctx, "SetInventory", notStarted("dashboard.SetInventory"))
	}
	if err := validateValue(itemID, kind, value); err != nil {
		return d.fail(ctx, "SetInventory", err)
	}

	err := d.api.SetInventory(ctx, sess, vendorID, itemID, backend.InventoryUpdate{Kind: kind, InventoryValue: value})
	if err != nil {
		return d.fail(ctx, "SetInventory", err)
	}
	d.notifier.Notify(ctx, notify.Notification{Level: notify.Success, Message: "Inventory updated"})
	d.refreshSoon(ctx)
	return nil
}

// LowStock lists Retail entries at or below threshold and Produce entries
// that are not available. A negative threshold uses the configured one.
func (d *Dashboard) LowStock(threshold int) []backend.InventoryEntry {
	if threshold < 0 {
		threshold = d.threshold
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var low []backend.InventoryEntry
	for _, e := range d.snapshot.Inventory {
		if !availability.IsPurchasable(e.Kind, e.InventoryValue) {
			low = append(low, e)
			continue
		}
		if e.Kind == catalog.Retail {
			if n, ok := e.InventoryValue.Count(); ok && n.IntPart() <= int64(threshold) {
				low = append(low, e)
			}
		}
	}
	return low
}

// refreshSoon asks the poller for an immediate run, or refreshes inline when
// the dashboard is not polling.
func (d *Dashboard) refreshSoon(ctx context.Context) {
	d.mu.RLock()
	p := d.poller
	d.mu.RUnlock()
	if p != nil && p.Running() {
		p.Trigger()
		return
	}
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Dashboard refresh failed", map[string]interface{}{"error": err.Error()})
	}
}

func (d *Dashboard) fail(ctx context.Context, op string, err error) error {
	d.notifier.Notify(ctx, notify.Classify(err))
	d.logger.Warn("Dashboard operation failed", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation": op,
		"category":  string(errs.CategoryOf(err)),
		"error":     err.Error(),
	}))
	return err
}

func validateValue(itemID string, kind catalog.Kind, value catalog.InventoryValue) error {
	invalid := func(msg string) error {
		return &errs.Error{
			Op:       "dashboard.SetInventory",
			Category: errs.CategoryPrecondition,
			ID:       itemID,
			Message:  msg,
			Err:      errs.ErrPreconditionFailed,
		}
	}
	switch kind {
	case catalog.Retail:
		n, ok := value.Count()
		if !ok || n.IsNegative() {
			return invalid("retail stock must be a non-negative quantity")
		}
	case catalog.Produce:
		flag, ok := value.Flag()
		if !ok || (flag != catalog.AvailableFlag && flag != "N") {
			return invalid(`produce stock must be "Y" or "N"`)
		}
	default:
		return invalid(fmt.Sprintf("unknown item kind %q", kind))
	}
	return nil
}

func notStarted(op string) error {
	return &errs.Error{
		Op:       op,
		Category: errs.CategoryPrecondition,
		Message:  "dashboard is not started",
		Err:      errs.ErrPreconditionFailed,
	}
}
