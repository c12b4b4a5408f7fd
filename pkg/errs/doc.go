// Package errs defines the storefront error taxonomy.
//
// Every failure a caller can observe falls into one of a small set of
// categories: authentication required, vendor conflict, unavailable item,
// precondition failure, backend rejection, and transient network failure.
// Sentinels are compared with errors.Is; the structured *Error carries the
// operation, the HTTP status and the server's message when the backend
// answered.
//
//	if errors.Is(err, errs.ErrVendorConflict) {
//	    // ask the user to clear the cart first
//	}
//
//	switch errs.CategoryOf(err) {
//	case errs.CategoryBackendRejected:
//	    log.Printf("backend said %d: %s", errs.StatusOf(err), errs.MessageOf(err))
//	}
package errs
