// Package favorites keeps a signed-in user's favorite (item, vendor) pairs.
//
// Toggles are optimistic. VendorsFor feeds cart.Client.ReAddFavorite, which
// only considers the vendors an item was favorited at.
package favorites
