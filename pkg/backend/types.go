package backend

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/storefront/pkg/catalog"
)

// CartLine is one line of the server cart.
type CartLine struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
	Quantity int             `json:"quantity"`
	Kind     catalog.Kind    `json:"kind"`
	VendorID string          `json:"vendorId,omitempty"`
}

// CartView is the authoritative cart returned by GET /cart/{userId}.
type CartView struct {
	Lines      []CartLine `json:"cart"`
	VendorID   string     `json:"vendorId"`
	VendorName string     `json:"vendorName"`
}

// AddRequest is the body of POST /cart/add/{userId}.
type AddRequest struct {
	ItemID   string       `json:"itemId"`
	Kind     catalog.Kind `json:"kind"`
	Quantity int          `json:"quantity"`
	VendorID string       `json:"vendorId"`
}

// LineRequest is the body of the add-one and remove-one calls.
type LineRequest struct {
	ItemID   string       `json:"itemId"`
	Kind     catalog.Kind `json:"kind"`
	VendorID string       `json:"vendorId"`
}

// Favorite is a (user, item, vendor) favorite. Item is filled in when the
// backend expands it.
type Favorite struct {
	UserID     string        `json:"userId,omitempty"`
	ItemID     string        `json:"itemId"`
	VendorID   string        `json:"vendorId"`
	VendorName string        `json:"vendorName,omitempty"`
	Item       *catalog.Item `json:"item,omitempty"`
}

// FavoriteRequest is the body of the favorite add and remove calls.
type FavoriteRequest struct {
	ItemID   string `json:"itemId"`
	VendorID string `json:"vendorId"`
}

// OrderLine is one line of a placed order.
type OrderLine struct {
	ItemID   string       `json:"itemId"`
	Name     string       `json:"name"`
	Quantity int          `json:"quantity"`
	Kind     catalog.Kind `json:"kind"`
}

// Order is a placed order as seen by its vendor.
type Order struct {
	ID          string          `json:"_id"`
	OrderNumber string          `json:"orderNumber,omitempty"`
	UserID      string          `json:"userId"`
	VendorID    string          `json:"vendorId"`
	Status      string          `json:"status"`
	Lines       []OrderLine     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// InventoryEntry is one item in a vendor's inventory.
type InventoryEntry struct {
	ItemID         string                 `json:"itemId"`
	Name           string                 `json:"name"`
	Category       string                 `json:"category,omitempty"`
	Kind           catalog.Kind           `json:"kind"`
	InventoryValue catalog.InventoryValue `json:"inventoryValue"`
}

// InventoryUpdate is the body of PUT /inventory/{vendorId}/{itemId}.
type InventoryUpdate struct {
	Kind           catalog.Kind           `json:"kind"`
	InventoryValue catalog.InventoryValue `json:"inventoryValue"`
}

// StatusUpdate is the body of POST /order/{orderId}/status.
type StatusUpdate struct {
	Status string `json:"status"`
}
