// Package backend is the HTTP/JSON client for the storefront backend.
//
// Every method takes the caller's session explicitly and sends its bearer
// token. Requests carry X-Correlation-ID and X-Request-ID headers and W3C
// trace context, are wrapped in a client span, and pass through an optional
// circuit breaker. Nothing is retried.
//
// Failures come back as *errs.Error: a non-2xx answer is BackendRejected with
// the HTTP status and the server's message, a transport or decoding failure is
// Network.
//
//	client := backend.New(cfg.Backend.BaseURL,
//	    backend.WithTimeout(cfg.Backend.Timeout),
//	    backend.WithLogger(log),
//	)
//	view, err := client.GetCart(ctx, sess)
package backend
