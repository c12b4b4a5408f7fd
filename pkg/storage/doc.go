// Package storage provides the local persisted key/value storage used for
// guest carts and saved sessions.
//
// Values are serialized to JSON on Set and come back as raw JSON from Get;
// Load decodes straight into a typed destination:
//
//	var lines []cart.Line
//	if err := storage.Load(ctx, store, "cart", &lines); errors.Is(err, storage.ErrNotFound) {
//	    lines = nil
//	}
//
// # Backends
//
// Redis backend (github.com/go-redis/redis/v8):
//   - Survives process restarts
//   - Keys are namespaced as "<namespace>:<key>"
//   - TTL per key, default one week
//
// In-memory backend:
//   - No external dependencies
//   - Thread-safe, with lazy expiry
//   - Used by tests and by the CLI when no Redis URL is configured
//
// Namespaced returns a view of a store with a key prefix, which is how one
// guest's data is kept apart from another's on a shared Redis.
package storage
