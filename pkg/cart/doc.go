// Package cart keeps a shopper's cart and enforces that it only ever holds
// items from one vendor.
//
// CanAdd is the pure guard: given a candidate item and the current cart it
// allows the add, rejects it as a vendor mismatch, or asks for a vendor to be
// chosen. Client wraps the guard with stock checks, backend mutations and
// reconciliation.
//
// Signed-in shoppers mutate the server cart, and every successful mutation is
// followed by a reload whose result replaces local state. Guests keep their
// cart in a GuestStore (in memory or Redis) which is authoritative for them.
//
// Failures are classified and sent to a notify.Notifier before being
// returned, except for quantity changes on an item with no vendor, which are
// only logged.
//
//	c := cart.NewClient(api, availability.NewResolver(api), taxonomy,
//	    cart.WithGuestCart(cart.NewStorageGuestStore(store, 7*24*time.Hour)),
//	    cart.WithLogger(log),
//	)
//	err := c.AddItem(ctx, sess, item, "V1", 1)
package cart
