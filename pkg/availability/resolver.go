package availability

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// VendorSource lists the vendors carrying an item. backend.Client satisfies it.
type VendorSource interface {
	ItemVendors(ctx context.Context, sess session.Session, itemID string) ([]catalog.VendorOffer, error)
}

// Result is the outcome of an availability check. Vendors is never nil; an
// empty list and IsAvailable == false mean the same thing.
type Result struct {
	IsAvailable bool
	Kind        catalog.Kind
	Vendors     []catalog.VendorOffer
}

// VendorIDs returns the ids of the passing vendors in order.
func (r Result) VendorIDs() []string {
	ids := make([]string, 0, len(r.Vendors))
	for _, v := range r.Vendors {
		ids = append(ids, v.ID)
	}
	return ids
}

// Resolver decides which vendors can currently sell an item.
type Resolver struct {
	source    VendorSource
	logger    logger.Logger
	telemetry *telemetry.Telemetry
	timeout   time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for swallowed lookup failures.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) { r.logger = l.WithField("component", "availability") }
}

// WithTelemetry records spans and availability counters.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(r *Resolver) { r.telemetry = t }
}

// WithLookupTimeout bounds each vendor lookup. Zero leaves it to the caller's
// context.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates a resolver reading vendors from source.
func NewResolver(source VendorSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve checks which vendors can sell item right now. With pinnedVendorID
// set the answer is about that vendor only. Lookup failures are logged and
// reported as unavailable; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, sess session.Session, item catalog.Item, tax *catalog.Taxonomy, pinnedVendorID string) Result {
	kind := tax.KindOf(item)
	result := Result{Kind: kind, Vendors: []catalog.VendorOffer{}}

	ctx, span := r.telemetry.StartSpan(ctx, "availability.Resolve",
		attribute.String("item.id", item.ID),
		attribute.String("item.kind", string(kind)),
		attribute.String("vendor.pinned", pinnedVendorID),
	)
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	offers, err := r.source.ItemVendors(ctx, sess, item.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vendor lookup failed")
		r.logger.Warn("Vendor lookup failed, treating item as unavailable", telemetry.EnrichLogFields(ctx, map[string]interface{}{
			"item_id":   item.ID,
			"vendor_id": pinnedVendorID,
			"error":     err.Error(),
		}))
		r.telemetry.RecordAvailability(ctx, string(kind), pinnedVendorID != "", false)
		return result
	}

	for _, offer := range offers {
		if pinnedVendorID != "" && offer.ID != pinnedVendorID {
			continue
		}
		if IsPurchasable(kind, offer.InventoryValue) {
			result.Vendors = append(result.Vendors, offer)
		}
		if pinnedVendorID != "" {
			break
		}
	}
	result.IsAvailable = len(result.Vendors) > 0

	span.SetAttributes(
		attribute.Int("vendors.offered", len(offers)),
		attribute.Int("vendors.available", len(result.Vendors)),
	)
	r.telemetry.RecordAvailability(ctx, string(kind), pinnedVendorID != "", result.IsAvailable)
	r.logger.Debug("Availability resolved", map[string]interface{}{
		"item_id":   item.ID,
		"kind":      string(kind),
		"pinned":    pinnedVendorID,
		"available": result.IsAvailable,
		"vendors":   len(result.Vendors),
	})
	return result
}

// IsPurchasable applies the stock rule for kind. Retail needs a numeric
// quantity above zero. Produce needs the flag to be exactly "Y".
func IsPurchasable(kind catalog.Kind, inv catalog.InventoryValue) bool {
	if kind == catalog.Retail {
		n, ok := inv.Count()
		return ok && n.GreaterThan(decimal.Zero)
	}
	flag, ok := inv.Flag()
	return ok && flag == catalog.AvailableFlag
}

// FilterVendors narrows r to the vendors in allowed. The kind is kept and
// availability recomputed.
func FilterVendors(r Result, allowed []string) Result {
	keep := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		keep[id] = struct{}{}
	}
	out := Result{Kind: r.Kind, Vendors: []catalog.VendorOffer{}}
	for _, v := range r.Vendors {
		if _, ok := keep[v.ID]; ok {
			out.Vendors = append(out.Vendors, v)
		}
	}
	out.IsAvailable = len(out.Vendors) > 0
	return out
}
