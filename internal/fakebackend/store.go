package fakebackend

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/session"
)

// DefaultMaxQuantity is the per-line ceiling the backend enforces.
const DefaultMaxQuantity = 10

// APIError is a rejection with the status and message the handlers send.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func reject(status int, format string, args ...interface{}) *APIError {
	return &APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Vendor is a seller and its stock per item id.
type Vendor struct {
	ID        string
	Name      string
	Inventory map[string]catalog.InventoryValue
}

type cartState struct {
	vendorID string
	lines    []backend.CartLine
}

// Store is the fake backend's in-memory state.
type Store struct {
	mu          sync.RWMutex
	maxQuantity int
	taxonomy    *catalog.Taxonomy

	accounts  map[string]session.User
	items     map[string]catalog.Item
	vendors   map[string]*Vendor
	carts     map[string]*cartState
	favorites map[string][]backend.Favorite
	orders    map[string]backend.Order
}

// NewStore creates an empty store classifying items with tax.
func NewStore(tax *catalog.Taxonomy) *Store {
	return &Store{
		maxQuantity: DefaultMaxQuantity,
		taxonomy:    tax,
		accounts:    make(map[string]session.User),
		items:       make(map[string]catalog.Item),
		vendors:     make(map[string]*Vendor),
		carts:       make(map[string]*cartState),
		favorites:   make(map[string][]backend.Favorite),
		orders:      make(map[string]backend.Order),
	}
}

// SetMaxQuantity changes the per-line ceiling.
func (s *Store) SetMaxQuantity(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxQuantity = n
}

// AddAccount registers a token for user.
func (s *Store) AddAccount(token string, user session.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[token] = user
}

// AddItem registers an item in the catalog.
func (s *Store) AddItem(item catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// Item looks up a catalog item.
func (s *Store) Item(id string) (catalog.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// AddVendor registers a vendor with no stock.
func (s *Store) AddVendor(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendors[id]; !ok {
		s.vendors[id] = &Vendor{ID: id, Name: name, Inventory: make(map[string]catalog.InventoryValue)}
	}
}

// Stock sets a vendor's inventory value for an item.
func (s *Store) Stock(vendorID, itemID string, value catalog.InventoryValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vendors[vendorID]; ok {
		v.Inventory[itemID] = value
	}
}

// AddOrder registers an order.
func (s *Store) AddOrder(order backend.Order) backend.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	s.orders[order.ID] = order
	return order
}

// UserForToken resolves a bearer token.
func (s *Store) UserForToken(token string) (session.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.accounts[token]
	return u, ok
}

// VendorsForItem lists every vendor stocking itemID, sorted by id.
func (s *Store) VendorsForItem(itemID string) []catalog.VendorOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.items[itemID]
	offers := []catalog.VendorOffer{}
	for _, v := range s.sortedVendors() {
		inv, ok := v.Inventory[itemID]
		if !ok {
			continue
		}
		offers = append(offers, catalog.VendorOffer{ID: v.ID, Name: v.Name, Price: item.Price, InventoryValue: inv})
	}
	return offers
}

// Cart returns userID's cart.
func (s *Store) Cart(userID string) backend.CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(userID)
}

func (s *Store) viewLocked(userID string) backend.CartView {
	view := backend.CartView{Lines: []backend.CartLine{}}
	c, ok := s.carts[userID]
	if !ok || len(c.lines) == 0 {
		return view
	}
	view.Lines = append(view.Lines, c.lines...)
	view.VendorID = c.vendorID
	if v, ok := s.vendors[c.vendorID]; ok {
		view.VendorName = v.Name
	}
	return view
}

// AddToCart adds quantity units, enforcing the one-vendor rule, stock and
// the per-line ceiling.
func (s *Store) AddToCart(userID string, req backend.AddRequest) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(userID, req.ItemID, req.Kind, req.VendorID, req.Quantity)
}

// AddOne adds one unit.
func (s *Store) AddOne(userID string, req backend.LineRequest) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(userID, req.ItemID, req.Kind, req.VendorID, 1)
}

func (s *Store) addLocked(userID, itemID string, kind catalog.Kind, vendorID string, quantity int) *APIError {
	if quantity < 1 {
		return reject(http.StatusBadRequest, "quantity must be at least 1")
	}
	if !kind.Valid() {
		return reject(http.StatusBadRequest, "kind must be Retail or Produce")
	}
	item, ok := s.items[itemID]
	if !ok {
		return reject(http.StatusNotFound, "item %s not found", itemID)
	}
	vendor, ok := s.vendors[vendorID]
	if !ok {
		return reject(http.StatusNotFound, "vendor %s not found", vendorID)
	}
	inv, ok := vendor.Inventory[itemID]
	if !ok {
		return reject(http.StatusBadRequest, "%s does not sell %s", vendor.Name, item.Name)
	}

	c := s.carts[userID]
	if c == nil {
		c = &cartState{}
		s.carts[userID] = c
	}
	if len(c.lines) > 0 && c.vendorID != vendorID {
		return reject(http.StatusConflict, "Cart contains items from another vendor")
	}

	idx := -1
	for i, l := range c.lines {
		if l.ItemID == itemID {
			idx = i
			break
		}
	}
	next := quantity
	if idx >= 0 {
		next += c.lines[idx].Quantity
	}

	if next > s.maxQuantity {
		return reject(http.StatusBadRequest, "Cannot exceed max quantity of %d", s.maxQuantity)
	}
	if kind == catalog.Retail {
		count, ok := inv.Count()
		if !ok || count.LessThan(decimal.NewFromInt(int64(next))) {
			left := int64(0)
			if ok && count.IsPositive() {
				left = count.IntPart()
			}
			return reject(http.StatusBadRequest, "Only %d left in stock", left)
		}
	} else if flag, ok := inv.Flag(); !ok || flag != catalog.AvailableFlag {
		return reject(http.StatusBadRequest, "%s is not available right now", item.Name)
	}

	if idx >= 0 {
		c.lines[idx].Quantity = next
		return nil
	}
	c.vendorID = vendorID
	c.lines = append(c.lines, backend.CartLine{
		ItemID:   item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Image:    item.Image,
		Category: item.Category,
		Quantity: next,
		Kind:     kind,
		VendorID: vendorID,
	})
	return nil
}

// RemoveOne takes one unit away, dropping the line at zero.
func (s *Store) RemoveOne(userID string, req backend.LineRequest) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.carts[userID]
	if c == nil {
		return reject(http.StatusNotFound, "item %s is not in the cart", req.ItemID)
	}
	for i, l := range c.lines {
		if l.ItemID != req.ItemID {
			continue
		}
		if l.Quantity <= 1 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity--
		}
		if len(c.lines) == 0 {
			c.vendorID = ""
		}
		return nil
	}
	return reject(http.StatusNotFound, "item %s is not in the cart", req.ItemID)
}

// RemoveLine drops the line for itemID.
func (s *Store) RemoveLine(userID, itemID string) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.carts[userID]
	if c == nil {
		return reject(http.StatusNotFound, "item %s is not in the cart", itemID)
	}
	for i, l := range c.lines {
		if l.ItemID == itemID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			if len(c.lines) == 0 {
				c.vendorID = ""
			}
			return nil
		}
	}
	return reject(http.StatusNotFound, "item %s is not in the cart", itemID)
}

// ClearCart empties userID's cart.
func (s *Store) ClearCart(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}

// Favorites lists userID's favorites with items expanded. A non-empty uniID
// keeps only favorites whose item is sold on that campus, which the fake
// treats as every item.
func (s *Store) Favorites(userID, uniID string) []backend.Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []backend.Favorite{}
	for _, f := range s.favorites[userID] {
		if item, ok := s.items[f.ItemID]; ok {
			item := item.WithVendor(f.VendorID, "")
			f.Item = &item
		}
		if v, ok := s.vendors[f.VendorID]; ok {
			f.VendorName = v.Name
		}
		out = append(out, f)
	}
	return out
}

// AddFavorite marks (item, vendor) for userID. Adding twice is a no-op.
func (s *Store) AddFavorite(userID string, req backend.FavoriteRequest) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[req.ItemID]; !ok {
		return reject(http.StatusNotFound, "item %s not found", req.ItemID)
	}
	for _, f := range s.favorites[userID] {
		if f.ItemID == req.ItemID && f.VendorID == req.VendorID {
			return nil
		}
	}
	s.favorites[userID] = append(s.favorites[userID], backend.Favorite{
		UserID:   userID,
		ItemID:   req.ItemID,
		VendorID: req.VendorID,
	})
	return nil
}

// RemoveFavorite unmarks (item, vendor).
func (s *Store) RemoveFavorite(userID string, req backend.FavoriteRequest) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.favorites[userID]
	for i, f := range favs {
		if f.ItemID == req.ItemID && f.VendorID == req.VendorID {
			s.favorites[userID] = append(favs[:i], favs[i+1:]...)
			return nil
		}
	}
	return reject(http.StatusNotFound, "favorite not found")
}

// terminalStatuses are order states the dashboard no longer shows.
var terminalStatuses = map[string]bool{"completed": true, "cancelled": true, "delivered": true}

// ActiveOrders lists vendorID's non-terminal orders, oldest first.
func (s *Store) ActiveOrders(vendorID string) []backend.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []backend.Order{}
	for _, o := range s.orders {
		if o.VendorID == vendorID && !terminalStatuses[strings.ToLower(o.Status)] {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetOrderStatus moves an order to status.
func (s *Store) SetOrderStatus(orderID, status string) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return reject(http.StatusNotFound, "order %s not found", orderID)
	}
	if status == "" {
		return reject(http.StatusBadRequest, "status is required")
	}
	o.Status = status
	s.orders[orderID] = o
	return nil
}

// Inventory lists vendorID's stock, sorted by item id.
func (s *Store) Inventory(vendorID string) ([]backend.InventoryEntry, *APIError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[vendorID]
	if !ok {
		return nil, reject(http.StatusNotFound, "vendor %s not found", vendorID)
	}
	out := make([]backend.InventoryEntry, 0, len(v.Inventory))
	for itemID, inv := range v.Inventory {
		item := s.items[itemID]
		out = append(out, backend.InventoryEntry{
			ItemID:         itemID,
			Name:           item.Name,
			Category:       item.Category,
			Kind:           s.taxonomy.KindOf(item),
			InventoryValue: inv,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// SetInventory replaces a vendor's stock of an item. The value must match
// the kind: a quantity for Retail, a flag for Produce.
func (s *Store) SetInventory(vendorID, itemID string, update backend.InventoryUpdate) *APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendors[vendorID]
	if !ok {
		return reject(http.StatusNotFound, "vendor %s not found", vendorID)
	}
	if _, ok := s.items[itemID]; !ok {
		return reject(http.StatusNotFound, "item %s not found", itemID)
	}
	switch update.Kind {
	case catalog.Retail:
		n, ok := update.InventoryValue.Count()
		if !ok || n.IsNegative() {
			return reject(http.StatusBadRequest, "quantity must be a non-negative number")
		}
	case catalog.Produce:
		if _, ok := update.InventoryValue.Flag(); !ok {
			return reject(http.StatusBadRequest, "isAvailable must be a string")
		}
	default:
		return reject(http.StatusBadRequest, "kind must be Retail or Produce")
	}
	v.Inventory[itemID] = update.InventoryValue
	return nil
}

func (s *Store) sortedVendors() []*Vendor {
	out := make([]*Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
