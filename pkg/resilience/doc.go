// Package resilience provides the circuit breaker that guards backend calls.
//
// The storefront never retries a request on its own: a failed mutation is
// reported to the user, who decides whether to try again. What the breaker
// adds is fail-fast behavior once the backend is clearly down, so a user
// tapping "add" repeatedly does not queue a pile of hanging requests.
//
// States:
//  1. Closed: requests pass through; consecutive failures are counted
//  2. Open: requests fail immediately with errs.ErrCircuitOpen
//  3. Half-open: after SleepWindow, trial requests decide whether to close
//
// Only transport failures and 5xx answers count. A 4xx answer (for example a
// "max quantity" rejection) means the backend is healthy.
package resilience
