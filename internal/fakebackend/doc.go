// Package fakebackend is an in-memory stand-in for the storefront backend.
//
// It serves the same REST routes the backend client calls and enforces the
// rules the real backend owns: one vendor per cart, stock on add, and a
// per-line quantity ceiling. Rejections carry the backend's wording ("Only N
// left in stock", "Cannot exceed max quantity of N") so client-side message
// classification can be exercised end to end.
package fakebackend
