package fakebackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/session"
	"github.com/campuseats/storefront/pkg/telemetry"
)

type userKey struct{}

// Server serves a Store over the storefront backend's REST contract.
type Server struct {
	store  *Store
	logger logger.Logger
	router *mux.Router
}

// NewServer builds the router for store.
func NewServer(store *Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoOp{}
	}
	s := &Server{store: store, logger: log.WithField("component", "fakebackend"), router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the server with tracing and correlation middleware.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(telemetry.Middleware(s), "fakebackend")
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/items/vendors/{itemId}", s.itemVendors).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/api/user/auth/user", s.currentUser(true)).Methods(http.MethodGet)
	api.HandleFunc("/api/auth/user", s.currentUser(false)).Methods(http.MethodGet)

	api.HandleFunc("/cart/{userId}", s.ownUser(s.getCart)).Methods(http.MethodGet)
	api.HandleFunc("/cart/add/{userId}", s.ownUser(s.addToCart)).Methods(http.MethodPost)
	api.HandleFunc("/cart/add-one/{userId}", s.ownUser(s.addOne)).Methods(http.MethodPost)
	api.HandleFunc("/cart/remove-one/{userId}", s.ownUser(s.removeOne)).Methods(http.MethodPost)
	api.HandleFunc("/cart/clear/{userId}", s.ownUser(s.clearCart)).Methods(http.MethodPost)
	api.HandleFunc("/cart/remove/{itemId}", s.removeLine).Methods(http.MethodDelete)

	api.HandleFunc("/fav/add/{userId}", s.ownUser(s.addFavorite)).Methods(http.MethodPost)
	api.HandleFunc("/fav/remove/{userId}", s.ownUser(s.removeFavorite)).Methods(http.MethodPost)
	api.HandleFunc("/fav/{userId}", s.ownUser(s.favorites)).Methods(http.MethodGet)
	api.HandleFunc("/fav/{userId}/{uniId}", s.ownUser(s.favorites)).Methods(http.MethodGet)

	api.HandleFunc("/order/vendor/{vendorId}/active", s.activeOrders).Methods(http.MethodGet)
	api.HandleFunc("/order/{orderId}/status", s.orderStatus).Methods(http.MethodPost)

	api.HandleFunc("/inventory/{vendorId}", s.inventory).Methods(http.MethodGet)
	api.HandleFunc("/inventory/{vendorId}/{itemId}", s.setInventory).Methods(http.MethodPut)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request served", telemetry.EnrichLogFields(r.Context(), map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		user, ok := s.store.UserForToken(token)
		if token == "" || !ok {
			writeError(w, reject(http.StatusUnauthorized, "invalid or missing token"))
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownUser rejects requests whose {userId} is not the caller.
func (s *Server) ownUser(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["userId"] != caller(r).ID {
			writeError(w, reject(http.StatusForbidden, "cannot access another user's data"))
			return
		}
		h(w, r)
	}
}

func caller(r *http.Request) session.User {
	u, _ := r.Context().Value(userKey{}).(session.User)
	return u
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "fakebackend"})
}

func (s *Server) currentUser(wrapped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wrapped {
			writeJSON(w, http.StatusOK, map[string]interface{}{"user": caller(r)})
			return
		}
		writeJSON(w, http.StatusOK, caller(r))
	}
}

func (s *Server) itemVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.VendorsForItem(mux.Vars(r)["itemId"]))
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Cart(caller(r).ID))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req backend.AddRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.AddToCart(caller(r).ID, req), "Item added to cart")
}

func (s *Server) addOne(w http.ResponseWriter, r *http.Request) {
	var req backend.LineRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.AddOne(caller(r).ID, req), "Quantity increased")
}

func (s *Server) removeOne(w http.ResponseWriter, r *http.Request) {
	var req backend.LineRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.RemoveOne(caller(r).ID, req), "Quantity decreased")
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	respond(w, s.store.RemoveLine(caller(r).ID, mux.Vars(r)["itemId"]), "Item removed")
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.store.ClearCart(caller(r).ID)
	respond(w, nil, "Cart cleared")
}

func (s *Server) favorites(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favourites": s.store.Favorites(caller(r).ID, vars["uniId"]),
	})
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	var req backend.FavoriteRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.AddFavorite(caller(r).ID, req), "Added to favourites")
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	var req backend.FavoriteRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.RemoveFavorite(caller(r).ID, req), "Removed from favourites")
}

func (s *Server) activeOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ActiveOrders(mux.Vars(r)["vendorId"]))
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	var req backend.StatusUpdate
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.store.SetOrderStatus(mux.Vars(r)["orderId"], req.Status), "Order updated")
}

func (s *Server) inventory(w http.ResponseWriter, r *http.Request) {
	entries, apiErr := s.store.Inventory(mux.Vars(r)["vendorId"])
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) setInventory(w http.ResponseWriter, r *http.Request) {
	var req backend.InventoryUpdate
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	respond(w, s.store.SetInventory(vars["vendorId"], vars["itemId"], req), "Inventory updated")
}

func decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, reject(http.StatusBadRequest, "invalid request body"))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, apiErr *APIError, message string) {
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status, map[string]string{"message": apiErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
