package storefront

import (
	"github.com/campuseats/storefront/pkg/availability"
	"github.com/campuseats/storefront/pkg/cart"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/dashboard"
	"github.com/campuseats/storefront/pkg/favorites"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/storage"
)

// Type aliases so callers can depend on the root package alone
type Config = config.Config
type Logger = logger.Logger
type Store = storage.Store
type Session = session.Session
type Item = catalog.Item
type Kind = catalog.Kind
type Taxonomy = catalog.Taxonomy
type VendorOffer = catalog.VendorOffer
type Availability = availability.Result
type Cart = cart.Cart
type CartLine = cart.Line
type Verdict = cart.Verdict
type VendorSelectionError = cart.VendorSelectionError
type Favorite = favorites.Favorite
type Snapshot = dashboard.Snapshot
type Notification = notify.Notification
type Notifier = notify.Notifier

// Constants re-exported from the component packages
const (
	Retail  = catalog.Retail
	Produce = catalog.Produce

	Allow                = cart.Allow
	NeedsVendorSelection = cart.NeedsVendorSelection
	Reject               = cart.Reject
)

// Re-exported constructors
var (
	NewGuest         = session.NewGuest
	NewAuthenticated = session.NewAuthenticated
	CanAdd           = cart.CanAdd
	NewConfig        = config.New
)
