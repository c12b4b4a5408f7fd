package storefront

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/internal/fakebackend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
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

func newStorefront(t *testing.T, cfgOpts ...config.Option) (*Storefront, *fakebackend.Store, *notify.Recorder) {
	t.Helper()
	store, url := startBackend(t)
	notes := &notify.Recorder{}

	cfgOpts = append([]config.Option{config.WithBackendURL(url)}, cfgOpts...)
	sf, err := NewFromOptions(context.Background(), cfgOpts, WithLogger(logger.NoOp{}), WithNotifier(notes))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sf.Close(context.Background()) })
	return sf, store, notes
}

func TestNewWiresComponents(t *testing.T) {
	sf, _, _ := newStorefront(t)

	assert.NotNil(t, sf.Backend)
	assert.NotNil(t, sf.Breaker, "circuit breaker is on by default")
	assert.NotNil(t, sf.Resolver)
	assert.NotNil(t, sf.Cart)
	assert.NotNil(t, sf.Favorites)
	assert.NotNil(t, sf.Dashboard)
	assert.NotNil(t, sf.Sessions)
	assert.Equal(t, Retail, sf.Taxonomy.KindOf(Item{Category: "snacks"}))
}

func TestGuestSessionCartRoundTrip(t *testing.T) {
	sf, _, notes := newStorefront(t)
	ctx := context.Background()

	sess, err := sf.Sessions.Current(ctx)
	require.NoError(t, err)
	require.False(t, sess.IsAuthenticated())

	item := Item{ID: "I1", Name: "Masala Chips", Category: "snacks"}
	require.NoError(t, sf.Cart.AddItem(ctx, sess, item, "V1", 2))
	assert.Equal(t, 2, sf.Cart.Cart().Count())
	last, _ := notes.Last()
	assert.Equal(t, "Added to cart", last.Message)
}

func TestSignedInFavoriteReAdd(t *testing.T) {
	sf, store, _ := newStorefront(t)
	ctx := context.Background()

	sess, err := sf.Sessions.Login(ctx, "tok-asha")
	require.NoError(t, err)
	assert.Equal(t, "U1", sess.UserID)

	_, err = sf.Favorites.Toggle(ctx, sess, "I1", "V2")
	require.NoError(t, err)
	_, err = sf.Favorites.List(ctx, sess, "")
	require.NoError(t, err)

	require.NoError(t, sf.ReAddFavorite(ctx, sess, Item{ID: "I1", Category: "snacks"}))
	assert.Equal(t, "V2", sf.Cart.Cart().BoundVendor())
	assert.Equal(t, "V2", store.Cart("U1").VendorID)
}

func TestGuestCartDisabled(t *testing.T) {
	sf, _, notes := newStorefront(t, config.WithGuestCart(false))
	ctx := context.Background()

	err := sf.Cart.AddItem(ctx, NewGuest(), Item{ID: "I1", Category: "snacks"}, "V1", 1)
	assert.True(t, errors.Is(err, errs.ErrAuthRequired))
	last, _ := notes.Last()
	assert.Equal(t, notify.MsgLoginRequired, last.Message)
}

func TestRedisGuestStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	sf, _, _ := newStorefront(t, config.WithGuestStorage("redis", "redis://"+mr.Addr()))
	ctx := context.Background()

	sess := NewGuest()
	require.NoError(t, sf.Cart.AddItem(ctx, sess, Item{ID: "I4", Category: "veg"}, "V2", 1))

	key := "storefront:guest:" + sess.GuestID + ":cart"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 168*time.Hour, mr.TTL(key))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.True(t, errs.IsConfigurationError(err))

	cfg := config.DefaultConfig()
	_, err = New(context.Background(), cfg)
	assert.True(t, errors.Is(err, errs.ErrMissingConfiguration), "backend URL is required")

	_, err = NewFromOptions(context.Background(), []config.Option{
		config.WithBackendURL("http://localhost:1"),
		config.WithTaxonomy([]string{"snacks"}, []string{"snacks"}),
	})
	assert.True(t, errs.IsConfigurationError(err))
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.Equal(t, "v1", APIVersion)
}
