package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/session"
)

// ItemVendors lists every vendor carrying itemID with its inventory value.
// The backend answers either with a bare array or with {"vendors": [...]}.
func (c *Client) ItemVendors(ctx context.Context, sess session.Session, itemID string) ([]catalog.VendorOffer, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "ItemVendors",
		method: http.MethodGet,
		path:   "/items/vendors/" + url.PathEscape(itemID),
		token:  sess.Token,
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}

	var offers []catalog.VendorOffer
	if err := json.Unmarshal(raw, &offers); err == nil {
		return offers, nil
	}
	var wrapped struct {
		Vendors []catalog.VendorOffer `json:"vendors"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, decodeError("ItemVendors", err)
	}
	return wrapped.Vendors, nil
}

// GetCart fetches the authoritative cart of the session's user.
func (c *Client) GetCart(ctx context.Context, sess session.Session) (CartView, error) {
	if err := requireToken("GetCart", sess.Token, sess.UserID); err != nil {
		return CartView{}, err
	}
	var view CartView
	err := c.do(ctx, request{
		op:     "GetCart",
		method: http.MethodGet,
		path:   "/cart/" + url.PathEscape(sess.UserID),
		token:  sess.Token,
		out:    &view,
	})
	return view, err
}

// AddToCart adds req.Quantity units of an item.
func (c *Client) AddToCart(ctx context.Context, sess session.Session, req AddRequest) error {
	return c.mutate(ctx, sess, "AddToCart", http.MethodPost, "/cart/add/"+url.PathEscape(sess.UserID), req)
}

// IncrementItem adds one unit of an item already in the cart.
func (c *Client) IncrementItem(ctx context.Context, sess session.Session, req LineRequest) error {
	return c.mutate(ctx, sess, "IncrementItem", http.MethodPost, "/cart/add-one/"+url.PathEscape(sess.UserID), req)
}

// DecrementItem removes one unit of an item.
func (c *Client) DecrementItem(ctx context.Context, sess session.Session, req LineRequest) error {
	return c.mutate(ctx, sess, "DecrementItem", http.MethodPost, "/cart/remove-one/"+url.PathEscape(sess.UserID), req)
}

// RemoveLine drops the whole line for itemID.
func (c *Client) RemoveLine(ctx context.Context, sess session.Session, itemID string) error {
	return c.mutate(ctx, sess, "RemoveLine", http.MethodDelete, "/cart/remove/"+url.PathEscape(itemID), nil)
}

// ClearCart empties the cart and releases its vendor binding.
func (c *Client) ClearCart(ctx context.Context, sess session.Session) error {
	return c.mutate(ctx, sess, "ClearCart", http.MethodPost, "/cart/clear/"+url.PathEscape(sess.UserID), nil)
}

func (c *Client) mutate(ctx context.Context, sess session.Session, op, method, path string, body interface{}) error {
	if err := requireToken(op, sess.Token, sess.UserID); err != nil {
		return err
	}
	return c.do(ctx, request{op: op, method: method, path: path, token: sess.Token, body: body})
}

// CurrentUser resolves token to its user. The user route moved between
// backend versions, so the newer path is tried first and the older one on
// any failure other than cancellation.
func (c *Client) CurrentUser(ctx context.Context, token string) (session.User, error) {
	user, err := c.currentUser(ctx, "/api/user/auth/user", token)
	if err == nil || !isFallbackWorthy(ctx, err) {
		return user, err
	}
	c.logger.Debug("Primary user route failed, trying fallback", map[string]interface{}{
		"error": err.Error(),
	})
	return c.currentUser(ctx, "/api/auth/user", token)
}

func (c *Client) currentUser(ctx context.Context, path, token string) (session.User, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{op: "CurrentUser", method: http.MethodGet, path: path, token: token, out: &raw})
	if err != nil {
		return session.User{}, err
	}

	var wrapped struct {
		User *session.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}
	var user session.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return session.User{}, decodeError("CurrentUser", err)
	}
	return user, nil
}

// Favorites lists the user's favorites, optionally scoped to a campus.
func (c *Client) Favorites(ctx context.Context, sess session.Session, uniID string) ([]Favorite, error) {
	if err := requireToken("Favorites", sess.Token, sess.UserID); err != nil {
		return nil, err
	}
	path := "/fav/" + url.PathEscape(sess.UserID)
	if uniID != "" {
		path += "/" + url.PathEscape(uniID)
	}
	var resp struct {
		Favourites []Favorite `json:"favourites"`
	}
	if err := c.do(ctx, request{op: "Favorites", method: http.MethodGet, path: path, token: sess.Token, out: &resp}); err != nil {
		return nil, err
	}
	return resp.Favourites, nil
}

// AddFavorite marks (item, vendor) as a favorite.
func (c *Client) AddFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error {
	return c.mutate(ctx, sess, "AddFavorite", http.MethodPost, "/fav/add/"+url.PathEscape(sess.UserID),
		FavoriteRequest{ItemID: itemID, VendorID: vendorID})
}

// RemoveFavorite unmarks (item, vendor).
func (c *Client) RemoveFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error {
	return c.mutate(ctx, sess, "RemoveFavorite", http.MethodPost, "/fav/remove/"+url.PathEscape(sess.UserID),
		FavoriteRequest{ItemID: itemID, VendorID: vendorID})
}

// ActiveOrders lists the vendor's orders that are not yet completed.
func (c *Client) ActiveOrders(ctx context.Context, sess session.Session, vendorID string) ([]Order, error) {
	if err := requireToken("ActiveOrders", sess.Token, sess.UserID); err != nil {
		return nil, err
	}
	var orders []Order
	err := c.do(ctx, request{
		op:     "ActiveOrders",
		method: http.MethodGet,
		path:   "/order/vendor/" + url.PathEscape(vendorID) + "/active",
		token:  sess.Token,
		out:    &orders,
	})
	return orders, err
}

// UpdateOrderStatus moves an order to status.
func (c *Client) UpdateOrderStatus(ctx context.Context, sess session.Session, orderID, status string) error {
	return c.mutate(ctx, sess, "UpdateOrderStatus", http.MethodPost, "/order/"+url.PathEscape(orderID)+"/status",
		StatusUpdate{Status: status})
}

// VendorInventory lists the vendor's inventory.
func (c *Client) VendorInventory(ctx context.Context, sess session.Session, vendorID string) ([]InventoryEntry, error) {
	if err := requireToken("VendorInventory", sess.Token, sess.UserID); err != nil {
		return nil, err
	}
	var entries []InventoryEntry
	err := c.do(ctx, request{
		op:     "VendorInventory",
		method: http.MethodGet,
		path:   "/inventory/" + url.PathEscape(vendorID),
		token:  sess.Token,
		out:    &entries,
	})
	return entries, err
}

// SetInventory replaces the inventory value of one item.
func (c *Client) SetInventory(ctx context.Context, sess session.Session, vendorID, itemID string, update InventoryUpdate) error {
	return c.mutate(ctx, sess, "SetInventory", http.MethodPut,
		"/inventory/"+url.PathEscape(vendorID)+"/"+url.PathEscape(itemID), update)
}
