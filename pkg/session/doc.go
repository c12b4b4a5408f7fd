// Package session models who the storefront is acting for.
//
// A Session is either Authenticated (bearer token plus user id) or Guest (a
// random guest id that keys local storage). Every cart, favorites and
// dashboard call takes the session as an argument.
//
// Manager keeps the active session in local storage and resolves a token to
// its user through the backend when logging in.
package session
