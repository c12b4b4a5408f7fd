// Package catalog holds the storefront's product vocabulary: items, the
// vendors that carry them, their inventory values, and the taxonomy that
// decides whether an item is Retail (counted) or Produce (flagged).
package catalog
