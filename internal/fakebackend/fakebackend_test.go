package fakebackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/session"
)

func newSeeded(t *testing.T) (*Store, *backend.Client) {
	t.Helper()
	tax, err := catalog.NewTaxonomy(config.DefaultRetailCategories, config.DefaultProduceCategories)
	require.NoError(t, err)

	store := NewStore(tax)
	Seed(store)
	srv := httptest.NewServer(NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)
	return store, backend.New(srv.URL)
}

var asha = session.NewAuthenticated("tok-asha", "U1")

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	_, client := newSeeded(t)

	_, err := client.GetCart(context.Background(), session.NewAuthenticated("bogus", "U1"))
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(err))
	assert.True(t, errs.IsAuth(err))

	_, err = client.GetCart(context.Background(), session.NewAuthenticated("tok-asha", "U2"))
	assert.Equal(t, http.StatusForbidden, errs.StatusOf(err))
}

func TestCartRulesEnforced(t *testing.T) {
	store, client := newSeeded(t)
	ctx := context.Background()

	require.NoError(t, client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I1", Kind: catalog.Retail, Quantity: 2, VendorID: "V2"}))

	err := client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I4", Kind: catalog.Produce, Quantity: 1, VendorID: "V1"})
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err), "V1 does not stock I4")

	err = client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I3", Kind: catalog.Produce, Quantity: 1, VendorID: "V1"})
	assert.Equal(t, http.StatusConflict, errs.StatusOf(err))

	err = client.IncrementItem(ctx, asha, backend.LineRequest{ItemID: "I1", Kind: catalog.Retail, VendorID: "V2"})
	require.NoError(t, err)
	err = client.IncrementItem(ctx, asha, backend.LineRequest{ItemID: "I1", Kind: catalog.Retail, VendorID: "V2"})
	assert.True(t, errors.Is(err, errs.ErrBackendRejected))
	assert.Equal(t, "Only 3 left in stock", errs.MessageOf(err))

	store.SetMaxQuantity(2)
	err = client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I4", Kind: catalog.Produce, Quantity: 3, VendorID: "V2"})
	assert.Equal(t, "Cannot exceed max quantity of 2", errs.MessageOf(err))

	view, err := client.GetCart(ctx, asha)
	require.NoError(t, err)
	assert.Equal(t, "V2", view.VendorID)
	assert.Equal(t, "Green Kitchen", view.VendorName)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestProduceFlagChecked(t *testing.T) {
	_, client := newSeeded(t)
	err := client.AddToCart(context.Background(), asha, backend.AddRequest{ItemID: "I3", Kind: catalog.Produce, Quantity: 1, VendorID: "V2"})
	assert.Equal(t, "Veg Thali is not available right now", errs.MessageOf(err))
}

func TestRemoveAndClearReleaseVendor(t *testing.T) {
	_, client := newSeeded(t)
	ctx := context.Background()

	require.NoError(t, client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I1", Kind: catalog.Retail, Quantity: 1, VendorID: "V1"}))
	require.NoError(t, client.DecrementItem(ctx, asha, backend.LineRequest{ItemID: "I1", Kind: catalog.Retail, VendorID: "V1"}))

	view, err := client.GetCart(ctx, asha)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Empty(t, view.VendorID)

	require.NoError(t, client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I4", Kind: catalog.Produce, Quantity: 1, VendorID: "V2"}))
	require.NoError(t, client.RemoveLine(ctx, asha, "I4"))
	require.NoError(t, client.AddToCart(ctx, asha, backend.AddRequest{ItemID: "I3", Kind: catalog.Produce, Quantity: 1, VendorID: "V1"}))
	require.NoError(t, client.ClearCart(ctx, asha))

	view, err = client.GetCart(ctx, asha)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestUserRoutes(t *testing.T) {
	_, client := newSeeded(t)
	user, err := client.CurrentUser(context.Background(), "tok-asha")
	require.NoError(t, err)
	assert.Equal(t, "U1", user.ID)
	assert.Equal(t, "uni-1", user.UniID)
}

func TestFavoritesRoundTrip(t *testing.T) {
	_, client := newSeeded(t)
	ctx := context.Background()

	require.NoError(t, client.AddFavorite(ctx, asha, "I1", "V2"))
	require.NoError(t, client.AddFavorite(ctx, asha, "I1", "V2"))

	favs, err := client.Favorites(ctx, asha, "uni-1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "Green Kitchen", favs[0].VendorName)
	require.NotNil(t, favs[0].Item)
	assert.Equal(t, "Masala Chips", favs[0].Item.Name)

	require.NoError(t, client.RemoveFavorite(ctx, asha, "I1", "V2"))
	err = client.RemoveFavorite(ctx, asha, "I1", "V2")
	assert.Equal(t, http.StatusNotFound, errs.StatusOf(err))
}

func TestVendorRoutes(t *testing.T) {
	_, client := newSeeded(t)
	ctx := context.Background()
	cafe := session.NewAuthenticated("tok-cafe", "U-V1")

	orders, err := client.ActiveOrders(ctx, cafe, "V1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "O1", orders[0].ID)

	require.NoError(t, client.UpdateOrderStatus(ctx, cafe, "O1", "completed"))
	orders, err = client.ActiveOrders(ctx, cafe, "V1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	inv, err := client.VendorInventory(ctx, cafe, "V1")
	require.NoError(t, err)
	require.Len(t, inv, 4)
	assert.Equal(t, catalog.Retail, inv[0].Kind)

	err = client.SetInventory(ctx, cafe, "V1", "I2", backend.InventoryUpdate{Kind: catalog.Retail, InventoryValue: catalog.FlagValue("Y")})
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))
	require.NoError(t, client.SetInventory(ctx, cafe, "V1", "I2", backend.InventoryUpdate{Kind: catalog.Retail, InventoryValue: catalog.QuantityValue(6)}))

	offers, err := client.ItemVendors(ctx, cafe, "I2")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	n, ok := offers[0].InventoryValue.Count()
	assert.True(t, ok)
	assert.Equal(t, int64(6), n.IntPart())
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_quantity: 4
accounts:
  - {token: t1, id: A1, name: Ann}
items:
  - {id: X1, name: Samosa, price: "15", category: snacks}
vendors:
  - id: VX
    name: Stall
    stock:
      X1: {quantity: 2}
`), 0o600))

	tax, err := catalog.NewTaxonomy(config.DefaultRetailCategories, config.DefaultProduceCategories)
	require.NoError(t, err)
	store := NewStore(tax)
	require.NoError(t, LoadSeed(store, path))

	u, ok := store.UserForToken("t1")
	assert.True(t, ok)
	assert.Equal(t, "A1", u.ID)
	offers := store.VendorsForItem("X1")
	require.Len(t, offers, 1)
	assert.Equal(t, "15", offers[0].Price.String())
}

func TestApplyRejectsBadSeed(t *testing.T) {
	store := NewStore(nil)
	err := Apply(store, SeedFile{Items: []seedItem{{ID: "X", Price: "cheap"}}})
	assert.Error(t, err)

	err = Apply(store, SeedFile{Vendors: []seedVendor{{ID: "V", Stock: map[string]seedStock{"X": {}}}}})
	assert.Error(t, err)
}
