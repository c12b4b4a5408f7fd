package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/internal/fakebackend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
)

func startBackend(t *testing.T) (*fakebackend.Store, string) {
	t.Helper()
	tax, err := catalog.NewTaxonomy(config.DefaultRetailCategories, config.DefaultProduceCategories)
	require.NoError(t, err)
	store := fakebackend.NewStore(tax)
	fakebackend.Seed(store)
	srv := httptest.NewServer(fakebackend.NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)
	return store, srv.URL
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestCartCommands(t *testing.T) {
	store, url := startBackend(t)

	out, notes, err := runCLI(t, "--backend", url, "--token", "tok-asha",
		"cart", "add", "--item", "I1", "--category", "snacks", "--vendor", "V1", "-q", "2")
	require.NoError(t, err)
	assert.Contains(t, notes, "Added to cart")
	assert.Contains(t, out, "I1")
	assert.Equal(t, 2, store.Cart("U1").Lines[0].Quantity)

	out, _, err = runCLI(t, "--backend", url, "--token", "tok-asha", "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Masala Chips")

	_, notes, err = runCLI(t, "--backend", url, "--token", "tok-asha",
		"cart", "add", "--item", "I4", "--category", "veg", "--vendor", "V2")
	require.Error(t, err)
	assert.Contains(t, notes, "another vendor")

	_, _, err = runCLI(t, "--backend", url, "--token", "tok-asha", "cart", "clear")
	require.NoError(t, err)
	assert.Empty(t, store.Cart("U1").Lines)
}

func TestCartAddPrintsVendorChoices(t *testing.T) {
	_, url := startBackend(t)

	out, _, err := runCLI(t, "--backend", url, "--token", "tok-asha",
		"cart", "add", "--item", "I1", "--category", "snacks")
	require.NoError(t, err)
	assert.Contains(t, out, "Choose a vendor for I1")
	assert.Contains(t, out, "Campus Cafe")
	assert.Contains(t, out, "Green Kitchen")
}

func TestFavoriteToggle(t *testing.T) {
	_, url := startBackend(t)

	out, _, err := runCLI(t, "--backend", url, "--token", "tok-asha",
		"fav", "toggle", "--item", "I1", "--vendor", "V2")
	require.NoError(t, err)
	assert.Contains(t, out, "favorited: true")

	out, _, err = runCLI(t, "--backend", url, "--token", "tok-asha", "fav", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "I1")
}

func TestDashboardStock(t *testing.T) {
	store, url := startBackend(t)

	_, notes, err := runCLI(t, "--backend", url, "--token", "tok-cafe",
		"dashboard", "stock", "--vendor", "V1", "--item", "I2", "--kind", "Retail", "--value", "7")
	require.NoError(t, err)
	assert.Contains(t, notes, "Inventory updated")

	inv, apiErr := store.Inventory("V1")
	require.Nil(t, apiErr)
	for _, e := range inv {
		if e.ItemID == "I2" {
			n, ok := e.InventoryValue.Count()
			require.True(t, ok)
			assert.Equal(t, int64(7), n.IntPart())
		}
	}

	_, _, err = runCLI(t, "--backend", url, "--token", "tok-cafe",
		"dashboard", "stock", "--vendor", "V1", "--item", "I2", "--kind", "Bulk", "--value", "7")
	assert.Error(t, err)
}

func TestGuestCartPersistsWithRedis(t *testing.T) {
	_, url := startBackend(t)
	mr := miniredis.RunT(t)

	_, notes, err := runCLI(t, "--backend", url, "--redis", "redis://"+mr.Addr(),
		"cart", "add", "--item", "I1", "--category", "snacks", "--vendor", "V1")
	require.NoError(t, err)
	assert.Contains(t, notes, "Added to cart")
	assert.NotContains(t, notes, "kept in memory")

	out, _, err := runCLI(t, "--backend", url, "--redis", "redis://"+mr.Addr(), "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "I1")
	assert.NotContains(t, out, "Cart is empty")
}

func TestGuestCartInMemoryWarns(t *testing.T) {
	_, url := startBackend(t)

	out, notes, err := runCLI(t, "--backend", url, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")
	assert.Contains(t, notes, "guest cart is kept in memory")
}

func TestUsageErrors(t *testing.T) {
	_, stderr, err := runCLI(t, "cart")
	require.Error(t, err)
	assert.Contains(t, stderr, "usage: storefront")
	assert.Contains(t, stderr, "--redis")

	_, _, err = runCLI(t, "--backend", "http://127.0.0.1:1", "bogus", "x")
	assert.Error(t, err)
}
