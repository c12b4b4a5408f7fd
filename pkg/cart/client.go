package cart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campuseats/storefront/pkg/availability"
	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/storage"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// CartAPI is the backend surface the client mutates. backend.Client
// satisfies it.
type CartAPI interface {
	GetCart(ctx context.Context, sess session.Session) (backend.CartView, error)
	AddToCart(ctx context.Context, sess session.Session, req backend.AddRequest) error
	IncrementItem(ctx context.Context, sess session.Session, req backend.LineRequest) error
	DecrementItem(ctx context.Context, sess session.Session, req backend.LineRequest) error
	RemoveLine(ctx context.Context, sess session.Session, itemID string) error
	ClearCart(ctx context.Context, sess session.Session) error
}

// AvailabilityChecker re-validates stock before a mutation.
// availability.Resolver satisfies it.
type AvailabilityChecker interface {
	Resolve(ctx context.Context, sess session.Session, item catalog.Item, tax *catalog.Taxonomy, pinnedVendorID string) availability.Result
}

// Client applies cart mutations and keeps a local copy of the cart.
//
// Signed-in sessions mutate the server cart and then reload it; the reloaded
// view replaces local state. Guest sessions mutate a cart held in a
// GuestStore, which is authoritative for them.
//
// Client is safe for concurrent use. Mutations are not serialized against each
// other: every server view is stamped with the sequence number drawn when its
// request was issued, and an older view never overwrites a newer one. A
// Refresh that starts while another Refresh is running is dropped.
type Client struct {
	api      CartAPI
	checker  AvailabilityChecker
	taxonomy *catalog.Taxonomy
	guests   GuestStore

	notifier  notify.Notifier
	logger    logger.Logger
	telemetry *telemetry.Telemetry

	seq        atomic.Uint64
	refreshing atomic.Bool
	closed     atomic.Bool

	guestMu sync.Mutex

	mu      sync.RWMutex
	current Cart
	owner   string
	applied uint64
}

// Option configures a Client.
type Option func(*Client)

// WithGuestCart sets where guest carts live. A nil store disables guest carts:
// guests then get ErrAuthRequired for every mutation.
func WithGuestCart(store GuestStore) Option {
	return func(c *Client) { c.guests = store }
}

// WithNotifier sets the notifier that receives user-facing messages.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l.WithField("component", "cart") }
}

// WithTelemetry sets the tracer and metric instruments.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *Client) { c.telemetry = t }
}

// NewClient creates a cart client. Guest carts default to an in-memory store.
func NewClient(api CartAPI, checker AvailabilityChecker, tax *catalog.Taxonomy, opts ...Option) *Client {
	c := &Client{
		api:       api,
		checker:   checker,
		taxonomy:  tax,
		guests:    NewStorageGuestStore(storage.NewInMemoryStore(), 0),
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = notify.LogNotifier{Logger: c.logger}
	}
	return c
}

// Cart returns a copy of the local cart.
func (c *Client) Cart() Cart {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// Close detaches the client. Responses that arrive afterwards are dropped.
func (c *Client) Close() {
	c.closed.Store(true)
}

// AddItem adds quantity units of item from vendorID. An empty vendorID uses
// the vendor already bound to the item. When no vendor is known yet the call
// returns a *VendorSelectionError listing the vendors the user can choose
// from, and nothing is changed.
func (c *Client) AddItem(ctx context.Context, sess session.Session, item catalog.Item, vendorID string, quantity int) error {
	ctx, span := c.begin(ctx, "AddItem", sess, item)
	defer span.End()

	if quantity < 1 {
		quantity = 1
	}
	if vendorID == "" {
		vendorID = item.VendorID
	}
	item = item.WithVendor(vendorID, "")

	if err := c.requireGuestCart(sess); err != nil {
		return c.fail(ctx, span, "AddItem", sess, err)
	}

	current, err := c.cartFor(ctx, sess)
	if err != nil {
		return c.fail(ctx, span, "AddItem", sess, err)
	}

	decision := CanAdd(item, current)
	span.SetAttributes(attribute.String("cart.verdict", decision.Verdict.String()))
	switch decision.Verdict {
	case Reject:
		return c.fail(ctx, span, "AddItem", sess, vendorConflict(decision, current, item))
	case NeedsVendorSelection:
		res := c.checker.Resolve(ctx, sess, item, c.taxonomy, decision.PinnedVendorID)
		if !res.IsAvailable {
			return c.fail(ctx, span, "AddItem", sess, unavailable("cart.AddItem", item.ID))
		}
		return &VendorSelectionError{ItemID: item.ID, PinnedVendorID: decision.PinnedVendorID, Candidates: res.Vendors}
	}

	res := c.checker.Resolve(ctx, sess, item, c.taxonomy, vendorID)
	if !res.IsAvailable {
		return c.fail(ctx, span, "AddItem", sess, unavailable("cart.AddItem", item.ID))
	}
	if item.VendorName == "" {
		item.VendorName = res.Vendors[0].Name
	}

	if sess.IsAuthenticated() {
		err = c.api.AddToCart(ctx, sess, backend.AddRequest{
			ItemID:   item.ID,
			Kind:     res.Kind,
			Quantity: quantity,
			VendorID: vendorID,
		})
		if err == nil {
			err = c.reload(ctx, sess)
		}
	} else {
		err = c.mutateGuest(ctx, sess, func(cart *Cart) error {
			// The guard above judged a snapshot; another add may have bound
			// the cart since.
			if d := CanAdd(item, *cart); d.Verdict != Allow {
				return vendorConflict(d, *cart, item)
			}
			if i := cart.index(item.ID); i >= 0 {
				cart.Lines[i].Quantity += quantity
				return nil
			}
			cart.Lines = append(cart.Lines, Line{Item: item, Quantity: quantity, Kind: res.Kind})
			return nil
		})
	}
	if err != nil {
		return c.fail(ctx, span, "AddItem", sess, err)
	}

	c.succeed(ctx, span, "AddItem", sess, "Added to cart")
	return nil
}

// IncreaseQuantity adds one unit of item. The item must carry its vendor.
// Stock is re-checked with that vendor first; there is no client-side
// ceiling.
func (c *Client) IncreaseQuantity(ctx context.Context, sess session.Session, item catalog.Item) error {
	ctx, span := c.begin(ctx, "IncreaseQuantity", sess, item)
	defer span.End()

	if err := c.requireVendor(ctx, span, "IncreaseQuantity", item); err != nil {
		return err
	}
	if err := c.requireGuestCart(sess); err != nil {
		return c.fail(ctx, span, "IncreaseQuantity", sess, err)
	}

	current, err := c.cartFor(ctx, sess)
	if err != nil {
		return c.fail(ctx, span, "IncreaseQuantity", sess, err)
	}
	if _, ok := current.Find(item.ID); !ok {
		return c.AddItem(ctx, sess, item, item.VendorID, 1)
	}

	res := c.checker.Resolve(ctx, sess, item, c.taxonomy, item.VendorID)
	if !res.IsAvailable {
		return c.fail(ctx, span, "IncreaseQuantity", sess, unavailable("cart.IncreaseQuantity", item.ID))
	}

	if sess.IsAuthenticated() {
		err = c.api.IncrementItem(ctx, sess, backend.LineRequest{ItemID: item.ID, Kind: res.Kind, VendorID: item.VendorID})
		if err == nil {
			err = c.reload(ctx, sess)
		}
	} else {
		err = c.mutateGuest(ctx, sess, func(cart *Cart) error {
			i := cart.index(item.ID)
			if i < 0 {
				return notInCart("cart.IncreaseQuantity", item.ID)
			}
			cart.Lines[i].Quantity++
			return nil
		})
	}
	if err != nil {
		return c.fail(ctx, span, "IncreaseQuantity", sess, err)
	}

	c.succeed(ctx, span, "IncreaseQuantity", sess, "")
	return nil
}

// DecreaseQuantity removes one unit of item. A line that would drop below one
// unit is removed. The item must carry its vendor.
func (c *Client) DecreaseQuantity(ctx context.Context, sess session.Session, item catalog.Item) error {
	ctx, span := c.begin(ctx, "DecreaseQuantity", sess, item)
	defer span.End()

	if err := c.requireVendor(ctx, span, "DecreaseQuantity", item); err != nil {
		return err
	}
	if err := c.requireGuestCart(sess); err != nil {
		return c.fail(ctx, span, "DecreaseQuantity", sess, err)
	}

	var err error
	if sess.IsAuthenticated() {
		err = c.api.DecrementItem(ctx, sess, backend.LineRequest{
			ItemID:   item.ID,
			Kind:     c.taxonomy.KindOf(item),
			VendorID: item.VendorID,
		})
		if err == nil {
			err = c.reload(ctx, sess)
		}
	} else {
		err = c.mutateGuest(ctx, sess, func(cart *Cart) error {
			i := cart.index(item.ID)
			if i < 0 {
				return notInCart("cart.DecreaseQuantity", item.ID)
			}
			if cart.Lines[i].Quantity <= 1 {
				cart.remove(i)
				return nil
			}
			cart.Lines[i].Quantity--
			return nil
		})
	}
	if err != nil {
		if errors.Is(err, errs.ErrPreconditionFailed) {
			c.logger.Warn("Decrease skipped", map[string]interface{}{"item_id": item.ID, "error": err.Error()})
			return err
		}
		return c.fail(ctx, span, "DecreaseQuantity", sess, err)
	}

	c.succeed(ctx, span, "DecreaseQuantity", sess, "")
	return nil
}

// RemoveItem drops item's line whatever its quantity.
func (c *Client) RemoveItem(ctx context.Context, sess session.Session, item catalog.Item) error {
	ctx, span := c.begin(ctx, "RemoveItem", sess, item)
	defer span.End()

	if err := c.requireGuestCart(sess); err != nil {
		return c.fail(ctx, span, "RemoveItem", sess, err)
	}

	var err error
	if sess.IsAuthenticated() {
		err = c.api.RemoveLine(ctx, sess, item.ID)
		if err == nil {
			err = c.reload(ctx, sess)
		}
	} else {
		err = c.mutateGuest(ctx, sess, func(cart *Cart) error {
			if i := cart.index(item.ID); i >= 0 {
				cart.remove(i)
			}
			return nil
		})
	}
	if err != nil {
		return c.fail(ctx, span, "RemoveItem", sess, err)
	}

	c.succeed(ctx, span, "RemoveItem", sess, "Removed from cart")
	return nil
}

// ClearCart empties the cart and releases its vendor binding.
func (c *Client) ClearCart(ctx context.Context, sess session.Session) error {
	ctx, span := c.begin(ctx, "ClearCart", sess, catalog.Item{})
	defer span.End()

	if err := c.requireGuestCart(sess); err != nil {
		return c.fail(ctx, span, "ClearCart", sess, err)
	}

	var err error
	if sess.IsAuthenticated() {
		seq := c.seq.Add(1)
		err = c.api.ClearCart(ctx, sess)
		if err == nil {
			c.apply(seq, sess.Subject(), Cart{})
			err = c.reload(ctx, sess)
		}
	} else {
		c.guestMu.Lock()
		err = c.guests.Clear(ctx, sess.GuestID)
		if err == nil {
			c.apply(c.seq.Add(1), sess.Subject(), Cart{})
		}
		c.guestMu.Unlock()
	}
	if err != nil {
		return c.fail(ctx, span, "ClearCart", sess, err)
	}

	c.succeed(ctx, span, "ClearCart", sess, "Cart cleared")
	return nil
}

// Refresh replaces local state with the authoritative cart. It reports false
// when it was dropped because another Refresh was already running; the caller
// should read Cart afterwards rather than assume its own reload landed.
func (c *Client) Refresh(ctx context.Context, sess session.Session) (bool, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.telemetry.RecordRefreshDropped(ctx)
		c.logger.Debug("Refresh already in flight, dropping", map[string]interface{}{"subject": sess.Subject()})
		return false, nil
	}
	defer c.refreshing.Store(false)

	ctx = telemetry.EnsureCorrelationID(ctx)
	if sess.IsAuthenticated() {
		return true, c.reload(ctx, sess)
	}
	if err := c.requireGuestCart(sess); err != nil {
		return true, err
	}

	seq := c.seq.Add(1)
	lines, err := c.guests.Load(ctx, sess.GuestID)
	if err != nil {
		return true, err
	}
	c.apply(seq, sess.Subject(), newCart(lines))
	return true, nil
}

// ReAddFavorite adds one unit of a favorited item, choosing among the vendors
// it was favorited at. With exactly one of them in stock (or the cart's own
// vendor among them) it is added directly; otherwise a *VendorSelectionError
// lists the in-stock favorite vendors.
func (c *Client) ReAddFavorite(ctx context.Context, sess session.Session, item catalog.Item, favoriteVendors []string) error {
	if len(favoriteVendors) == 0 {
		return c.AddItem(ctx, sess, item, item.VendorID, 1)
	}

	ctx, span := c.begin(ctx, "ReAddFavorite", sess, item)
	defer span.End()

	res := availability.FilterVendors(c.checker.Resolve(ctx, sess, item, c.taxonomy, ""), favoriteVendors)
	if !res.IsAvailable {
		return c.fail(ctx, span, "ReAddFavorite", sess, unavailable("cart.ReAddFavorite", item.ID))
	}

	if current, err := c.cartFor(ctx, sess); err == nil {
		if bound := current.BoundVendor(); bound != "" {
			for _, v := range res.Vendors {
				if v.ID == bound {
					return c.AddItem(ctx, sess, item.WithVendor(v.ID, v.Name), v.ID, 1)
				}
			}
		}
	}

	if len(res.Vendors) == 1 {
		v := res.Vendors[0]
		return c.AddItem(ctx, sess, item.WithVendor(v.ID, v.Name), v.ID, 1)
	}
	return &VendorSelectionError{ItemID: item.ID, Candidates: res.Vendors}
}

// reload fetches the server cart and applies it if nothing newer has landed.
func (c *Client) reload(ctx context.Context, sess session.Session) error {
	seq := c.seq.Add(1)
	view, err := c.api.GetCart(ctx, sess)
	if err != nil {
		return err
	}
	c.apply(seq, sess.Subject(), fromView(view))
	return nil
}

// apply installs cart as local state unless the client is closed or a view
// from a later-issued request is already installed.
func (c *Client) apply(seq uint64, owner string, cart Cart) bool {
	if c.closed.Load() {
		c.logger.Debug("Discarding cart view after close", map[string]interface{}{"seq": seq})
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		c.logger.Debug("Discarding stale cart view", map[string]interface{}{
			"seq":     seq,
			"applied": c.applied,
		})
		return false
	}
	c.applied = seq
	c.owner = owner
	c.current = cart
	return true
}

// cartFor returns the cart the guard should judge against. Guest carts are
// read from their store; a signed-in user's cart comes from local state, or
// from the server when local state belongs to someone else.
func (c *Client) cartFor(ctx context.Context, sess session.Session) (Cart, error) {
	if !sess.IsAuthenticated() {
		lines, err := c.guests.Load(ctx, sess.GuestID)
		if err != nil {
			return Cart{}, err
		}
		return newCart(lines), nil
	}

	c.mu.RLock()
	if c.owner == sess.Subject() {
		cart := c.current.Clone()
		c.mu.RUnlock()
		return cart, nil
	}
	c.mu.RUnlock()

	seq := c.seq.Add(1)
	view, err := c.api.GetCart(ctx, sess)
	if err != nil {
		return Cart{}, err
	}
	cart := fromView(view)
	if !c.apply(seq, sess.Subject(), cart) {
		// A later-issued view landed while this one was in flight.
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.owner == sess.Subject() {
			return c.current.Clone(), nil
		}
	}
	return cart, nil
}

func (c *Client) mutateGuest(ctx context.Context, sess session.Session, fn func(*Cart) error) error {
	c.guestMu.Lock()
	defer c.guestMu.Unlock()

	seq := c.seq.Add(1)
	lines, err := c.guests.Load(ctx, sess.GuestID)
	if err != nil {
		return err
	}
	cart := newCart(lines)
	if err := fn(&cart); err != nil {
		return err
	}
	cart.rebind()
	if err := c.guests.Save(ctx, sess.GuestID, cart.Lines); err != nil {
		return err
	}
	c.apply(seq, sess.Subject(), cart)
	return nil
}

func (c *Client) requireGuestCart(sess session.Session) error {
	if sess.IsAuthenticated() || c.guests != nil {
		return nil
	}
	return errs.New("cart", errs.CategoryAuthRequired, errs.ErrAuthRequired)
}

// requireVendor rejects quantity changes for an item with no vendor. The
// failure is logged only; no notification is sent.
func (c *Client) requireVendor(ctx context.Context, span trace.Span, op string, item catalog.Item) error {
	if item.VendorID != "" {
		return nil
	}
	err := &errs.Error{
		Op:       "cart." + op,
		Category: errs.CategoryPrecondition,
		ID:       item.ID,
		Message:  "item has no vendor",
		Err:      errs.ErrPreconditionFailed,
	}
	span.SetStatus(codes.Error, err.Message)
	c.logger.Warn("Quantity change without vendor", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation": op,
		"item_id":   item.ID,
	}))
	return err
}

func (c *Client) begin(ctx context.Context, op string, sess session.Session, item catalog.Item) (context.Context, trace.Span) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx = telemetry.WithUserID(ctx, sess.UserID)
	return c.telemetry.StartSpan(ctx, "cart."+op,
		attribute.String("session.mode", string(sess.Mode)),
		attribute.String("item.id", item.ID),
		attribute.String("vendor.id", item.VendorID),
	)
}

// fail notifies the user about err and returns it.
func (c *Client) fail(ctx context.Context, span trace.Span, op string, sess session.Session, err error) error {
	n := notify.Classify(err)
	c.notifier.Notify(ctx, n)

	span.RecordError(err)
	span.SetStatus(codes.Error, n.Message)
	c.telemetry.RecordCartMutation(ctx, op, string(sess.Mode), err)
	c.logger.Warn("Cart operation failed", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation": op,
		"subject":   sess.Subject(),
		"category":  string(errs.CategoryOf(err)),
		"error":     err.Error(),
	}))
	return err
}

func (c *Client) succeed(ctx context.Context, span trace.Span, op string, sess session.Session, message string) {
	span.SetStatus(codes.Ok, "")
	c.telemetry.RecordCartMutation(ctx, op, string(sess.Mode), nil)
	if message != "" {
		c.notifier.Notify(ctx, notify.Notification{Level: notify.Success, Message: message})
	}
	c.logger.Debug("Cart operation succeeded", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation": op,
		"subject":   sess.Subject(),
	}))
}

func unavailable(op, itemID string) error {
	return &errs.Error{Op: op, Category: errs.CategoryUnavailable, ID: itemID, Err: errs.ErrUnavailable}
}

func vendorConflict(d Decision, current Cart, item catalog.Item) error {
	return &errs.Error{
		Op:       "cart.AddItem",
		Category: errs.CategoryVendorConflict,
		ID:       item.ID,
		Err:      fmt.Errorf("%s: cart vendor %s, item vendor %s: %w", d.Reason, current.BoundVendor(), item.VendorID, errs.ErrVendorConflict),
	}
}

func notInCart(op, itemID string) error {
	return &errs.Error{
		Op:       op,
		Category: errs.CategoryPrecondition,
		ID:       itemID,
		Message:  "item is not in the cart",
		Err:      errs.ErrPreconditionFailed,
	}
}
