// Package dashboard is the vendor view: active orders and inventory, kept
// fresh by a poller, with order status and stock updates.
//
// Each poll fetches orders and inventory concurrently. A failed poll keeps
// the previous snapshot and is reported by LastError. Writes trigger an
// immediate poll.
package dashboard
