package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/resilience"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/telemetry"
)

var testSession = session.NewAuthenticated("tok-1", "U1")

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestItemVendorsAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"_id":"V1","name":"Cafe","inventoryValue":{"quantity":3}}]`},
		{"wrapped", `{"vendors":[{"_id":"V1","name":"Cafe","inventoryValue":{"quantity":3}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/items/vendors/I1", r.URL.Path)
				assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			offers, err := c.ItemVendors(context.Background(), testSession, "I1")
			require.NoError(t, err)
			require.Len(t, offers, 1)
			assert.Equal(t, "V1", offers[0].ID)
			n, ok := offers[0].InventoryValue.Count()
			assert.True(t, ok)
			assert.Equal(t, int64(3), n.IntPart())
		})
	}
}

func TestCartMutationsSendContractBodies(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]interface{}
	}
	var calls []call

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		calls = append(calls, call{r.Method, r.URL.Path, body})
		assert.NotEmpty(t, r.Header.Get(telemetry.HeaderRequestID))
		assert.NotEmpty(t, r.Header.Get(telemetry.HeaderCorrelationID))
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	require.NoError(t, c.AddToCart(ctx, testSession, AddRequest{ItemID: "I1", Kind: catalog.Retail, Quantity: 2, VendorID: "V1"}))
	require.NoError(t, c.IncrementItem(ctx, testSession, LineRequest{ItemID: "I1", Kind: catalog.Retail, VendorID: "V1"}))
	require.NoError(t, c.DecrementItem(ctx, testSession, LineRequest{ItemID: "I1", Kind: catalog.Produce, VendorID: "V1"}))
	require.NoError(t, c.RemoveLine(ctx, testSession, "I1"))
	require.NoError(t, c.ClearCart(ctx, testSession))

	require.Len(t, calls, 5)
	assert.Equal(t, call{http.MethodPost, "/cart/add/U1", map[string]interface{}{
		"itemId": "I1", "kind": "Retail", "quantity": float64(2), "vendorId": "V1",
	}}, calls[0])
	assert.Equal(t, "/cart/add-one/U1", calls[1].path)
	assert.Equal(t, "Produce", calls[2].body["kind"])
	assert.Equal(t, "/cart/remove-one/U1", calls[2].path)
	assert.Equal(t, http.MethodDelete, calls[3].method)
	assert.Equal(t, "/cart/remove/I1", calls[3].path)
	assert.Equal(t, "/cart/clear/U1", calls[4].path)
}

func TestGetCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/U1", r.URL.Path)
		_, _ = io.WriteString(w, `{"cart":[{"itemId":"I1","name":"Chips","price":"20","quantity":2,"kind":"Retail"}],"vendorId":"V1","vendorName":"Cafe"}`)
	})

	view, err := c.GetCart(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, "V1", view.VendorID)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "20", view.Lines[0].Price.String())
}

func TestRejectedResponsesCarryServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message field", http.StatusBadRequest, `{"message":"Only 2 left in stock"}`, "Only 2 left in stock"},
		{"error field", http.StatusConflict, `{"error":"max quantity reached"}`, "max quantity reached"},
		{"raw body", http.StatusBadGateway, "upstream down", "upstream down"},
		{"empty body", http.StatusNotFound, "", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.IncrementItem(context.Background(), testSession, LineRequest{ItemID: "I1", VendorID: "V1"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrBackendRejected))
			assert.Equal(t, errs.CategoryBackendRejected, errs.CategoryOf(err))
			assert.Equal(t, tt.status, errs.StatusOf(err))
			assert.Equal(t, tt.message, errs.MessageOf(err))
		})
	}
}

func TestNetworkFailures(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url, WithTimeout(time.Second)).GetCart(context.Background(), testSession)
		assert.True(t, errors.Is(err, errs.ErrNetwork))
		assert.True(t, errs.IsTransient(err))
	})

	t.Run("undecodable body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		})
		_, err := c.GetCart(context.Background(), testSession)
		assert.Equal(t, errs.CategoryNetwork, errs.CategoryOf(err))
	})
}

func TestGuestSessionNeedsAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	guest := session.NewGuest()
	ctx := context.Background()

	_, err := c.GetCart(ctx, guest)
	assert.True(t, errors.Is(err, errs.ErrAuthRequired))
	assert.True(t, errors.Is(c.ClearCart(ctx, guest), errs.ErrAuthRequired))
	_, err = c.Favorites(ctx, guest, "")
	assert.True(t, errs.IsAuth(err))
}

func TestCurrentUserFallsBack(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/user/auth/user" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"user":{"_id":"U9","name":"Asha","uniID":"uni-1"}}`)
	})

	user, err := c.CurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "U9", user.ID)
	assert.Equal(t, "uni-1", user.UniID)
	assert.Equal(t, []string{"/api/user/auth/user", "/api/auth/user"}, paths)
}

func TestCurrentUserUnwrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_id":"U2","email":"a@b.c"}`)
	})

	user, err := c.CurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "U2", user.ID)
}

func TestFavoritesPath(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Path)
		_, _ = io.WriteString(w, `{"favourites":[{"itemId":"I1","vendorId":"V1"}]}`)
	})

	ctx := context.Background()
	favs, err := c.Favorites(ctx, testSession, "")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "V1", favs[0].VendorID)

	_, err = c.Favorites(ctx, testSession, "uni-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/fav/U1", "/fav/U1/uni-1"}, got)
}

func TestDashboardEndpoints(t *testing.T) {
	var update InventoryUpdate
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/order/vendor/V1/active":
			_, _ = io.WriteString(w, `[{"_id":"O1","vendorId":"V1","status":"placed","total":"120.50","items":[{"itemId":"I1","quantity":2}]}]`)
		case "/inventory/V1":
			_, _ = io.WriteString(w, `[{"itemId":"I1","kind":"Produce","inventoryValue":{"isAvailable":"Y"}}]`)
		case "/inventory/V1/I2":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		case "/order/O1/status":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	orders, err := c.ActiveOrders(ctx, testSession, "V1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "120.5", orders[0].Total.String())

	inv, err := c.VendorInventory(ctx, testSession, "V1")
	require.NoError(t, err)
	flag, ok := inv[0].InventoryValue.Flag()
	assert.True(t, ok)
	assert.Equal(t, "Y", flag)

	require.NoError(t, c.SetInventory(ctx, testSession, "V1", "I2", InventoryUpdate{Kind: catalog.Retail, InventoryValue: catalog.QuantityValue(7)}))
	n, ok := update.InventoryValue.Count()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n.IntPart())

	require.NoError(t, c.UpdateOrderStatus(ctx, testSession, "O1", "ready"))
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	hits := 0
	cb, err := resilience.NewCircuitBreaker(&resilience.Config{
		Name:             "backend",
		FailureThreshold: 2,
		SleepWindow:      time.Minute,
		HalfOpenRequests: 1,
	})
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}, WithCircuitBreaker(cb))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.GetCart(ctx, testSession)
		assert.True(t, errors.Is(err, errs.ErrBackendRejected))
	}

	_, err = c.GetCart(ctx, testSession)
	assert.True(t, errors.Is(err, errs.ErrCircuitOpen))
	assert.Equal(t, 2, hits)
}
