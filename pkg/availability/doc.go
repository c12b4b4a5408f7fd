// Package availability answers "who can sell this item right now".
//
// The item's kind comes from the category taxonomy. Retail stock is a count
// and is available above zero; Produce stock is a flag and is available only
// when it is exactly "Y". A pinned vendor narrows the answer to that vendor.
// Lookup failures never reach the caller: they are logged and the item is
// reported unavailable.
package availability
