package favorites

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// Favorite is a (user, item, vendor) marking.
type Favorite = backend.Favorite

// API is the backend surface for favorites. backend.Client satisfies it.
type API interface {
	Favorites(ctx context.Context, sess session.Session, uniID string) ([]backend.Favorite, error)
	AddFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error
	RemoveFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error
}

// Status says whether an entry has been confirmed by the backend.
type Status int

const (
	Confirmed Status = iota
	Pending
)

func (s Status) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

// Entry is the local state of one (item, vendor) pair.
type Entry struct {
	Favorited bool
	Status    Status
}

type key struct {
	itemID   string
	vendorID string
}

// Service keeps the signed-in user's favorites and toggles them
// optimistically: the local entry flips at once and is marked Pending until
// the backend answers, then either becomes Confirmed or reverts.
type Service struct {
	api       API
	notifier  notify.Notifier
	logger    logger.Logger
	telemetry *telemetry.Telemetry

	mu      sync.RWMutex
	owner   string
	entries map[key]Entry
	items   map[key]Favorite
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier that receives user-facing messages.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l.WithField("component", "favorites") }
}

// WithTelemetry sets the tracer.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(s *Service) { s.telemetry = t }
}

// NewService creates a favorites service.
func NewService(api API, opts ...Option) *Service {
	s := &Service{
		api:       api,
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
		entries:   make(map[key]Entry),
		items:     make(map[key]Favorite),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{Logger: s.logger}
	}
	return s
}

// List loads the user's favorites, optionally scoped to a campus, and
// replaces local state with them. Entries of toggles still in flight stay
// Pending.
func (s *Service) List(ctx context.Context, sess session.Session, uniID string) ([]Favorite, error) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := s.telemetry.StartSpan(ctx, "favorites.List", attribute.String("uni.id", uniID))
	defer span.End()

	if err := requireAuth("favorites.List", sess); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	favs, err := s.api.Favorites(ctx, sess, uniID)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.mu.Lock()
	entries := make(map[key]Entry, len(favs))
	items := make(map[key]Favorite, len(favs))
	for _, f := range favs {
		k := key{f.ItemID, f.VendorID}
		entries[k] = Entry{Favorited: true, Status: Confirmed}
		items[k] = f
	}
	// An in-flight Toggle keeps its Pending entry until it settles.
	if s.owner == sess.Subject() {
		for k, e := range s.entries {
			if e.Status == Pending {
				entries[k] = e
			}
		}
	}
	s.owner = sess.Subject()
	s.entries = entries
	s.items = items
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	return favs, nil
}

// Toggle flips the favorite state of (itemID, vendorID) and reports the new
// state. While the backend call runs the entry is Pending; a second Toggle of
// the same pair in that window fails with a precondition error. On failure
// the entry reverts to what it was.
func (s *Service) Toggle(ctx context.Context, sess session.Session, itemID, vendorID string) (bool, error) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx = telemetry.WithUserID(ctx, sess.UserID)
	ctx, span := s.telemetry.StartSpan(ctx, "favorites.Toggle",
		attribute.String("item.id", itemID),
		attribute.String("vendor.id", vendorID),
	)
	defer span.End()

	if err := requireAuth("favorites.Toggle", sess); err != nil {
		return false, s.fail(ctx, span, err)
	}

	k := key{itemID, vendorID}
	s.mu.Lock()
	if s.owner != sess.Subject() {
		s.owner = sess.Subject()
		s.entries = make(map[key]Entry)
		s.items = make(map[key]Favorite)
	}
	prior := s.entries[k]
	if prior.Status == Pending {
		s.mu.Unlock()
		s.logger.Debug("Favorite toggle already pending", map[string]interface{}{"item_id": itemID, "vendor_id": vendorID})
		return prior.Favorited, &errs.Error{
			Op:       "favorites.Toggle",
			Category: errs.CategoryPrecondition,
			ID:       itemID,
			Message:  "favorite update already in flight",
			Err:      errs.ErrPreconditionFailed,
		}
	}
	want := !prior.Favorited
	s.entries[k] = Entry{Favorited: want, Status: Pending}
	s.mu.Unlock()

	var err error
	if want {
		err = s.api.AddFavorite(ctx, sess, itemID, vendorID)
	} else {
		err = s.api.RemoveFavorite(ctx, sess, itemID, vendorID)
	}

	s.mu.Lock()
	if s.owner == sess.Subject() {
		if err != nil {
			s.restore(k, prior)
		} else {
			s.entries[k] = Entry{Favorited: want, Status: Confirmed}
			if want {
				if _, ok := s.items[k]; !ok {
					s.items[k] = Favorite{UserID: sess.UserID, ItemID: itemID, VendorID: vendorID}
				}
			} else {
				delete(s.items, k)
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return prior.Favorited, s.fail(ctx, span, err)
	}

	message := "Removed from favourites"
	if want {
		message = "Added to favourites"
	}
	s.notifier.Notify(ctx, notify.Notification{Level: notify.Success, Message: message})
	span.SetStatus(codes.Ok, "")
	return want, nil
}

func (s *Service) restore(k key, prior Entry) {
	if prior == (Entry{}) {
		delete(s.entries, k)
		return
	}
	s.entries[k] = prior
}

// State returns the local entry for (itemID, vendorID).
func (s *Service) State(itemID, vendorID string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key{itemID, vendorID}]
}

// IsFavorite reports whether (itemID, vendorID) is currently favorited,
// counting pending toggles.
func (s *Service) IsFavorite(itemID, vendorID string) bool {
	return s.State(itemID, vendorID).Favorited
}

// VendorsFor lists, sorted, the vendors itemID is favorited at.
func (s *Service) VendorsFor(itemID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var vendors []string
	for k, e := range s.entries {
		if k.itemID == itemID && e.Favorited {
			vendors = append(vendors, k.vendorID)
		}
	}
	sort.Strings(vendors)
	return vendors
}

// Items returns the favorites known locally, ordered by item then vendor.
func (s *Service) Items() []Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Favorite, 0, len(s.items))
	for k, f := range s.items {
		if s.entries[k].Favorited {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].VendorID < out[j].VendorID
	})
	return out
}

// fail notifies the user about err and returns it.
func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	n := notify.Classify(err)
	s.notifier.Notify(ctx, n)
	span.RecordError(err)
	span.SetStatus(codes.Error, n.Message)
	s.logger.Warn("Favorites operation failed", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"category": string(errs.CategoryOf(err)),
		"error":    err.Error(),
	}))
	return err
}

func requireAuth(op string, sess session.Session) error {
	if sess.IsAuthenticated() {
		return nil
	}
	return &errs.Error{Op: op, Category: errs.CategoryAuthRequired, Err: fmt.Errorf("favorites: %w", errs.ErrAuthRequired)}
}
