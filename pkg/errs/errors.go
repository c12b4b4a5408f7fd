package errs

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Standard sentinel errors for comparison using errors.Is().
var (
	// Session errors
	ErrAuthRequired = errors.New("authentication required")

	// Cart errors
	ErrVendorConflict       = errors.New("cart holds items from another vendor")
	ErrUnavailable          = errors.New("item unavailable")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrNeedsVendorSelection = errors.New("vendor selection required")

	// Backend errors
	ErrBackendRejected = errors.New("backend rejected request")
	ErrNetwork         = errors.New("network failure")
	ErrCircuitOpen     = errors.New("circuit breaker is open")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// Category classifies failures for notification and retry decisions.
type Category string

const (
	CategoryAuthRequired    Category = "AUTH_REQUIRED"
	CategoryVendorConflict  Category = "VENDOR_CONFLICT"
	CategoryUnavailable     Category = "UNAVAILABLE"
	CategoryBackendRejected Category = "BACKEND_REJECTED"
	CategoryNetwork         Category = "NETWORK"
	CategoryPrecondition    Category = "PRECONDITION"
	CategoryConfig          Category = "CONFIG"
	CategoryUnknown         Category = "UNKNOWN"
)

// Error provides structured error information with context.
// It implements the error interface and supports error wrapping.
type Error struct {
	Op       string   // Operation that failed (e.g., "backend.AddToCart")
	Category Category // Failure class
	ID       string   // Optional ID of the entity involved
	Status   int      // HTTP status when the backend answered
	Message  string   // Human-readable message, server text when available
	Err      error    // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *Error) Error() string {
	if e.Op != "" && e.Message != "" {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %s", e.Op, e.ID, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Category)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error for op wrapping err under category.
func New(op string, category Category, err error) *Error {
	return &Error{
		Op:       op,
		Category: category,
		Err:      err,
	}
}

// Rejected builds the error returned for a non-2xx backend response.
func Rejected(op string, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Op:       op,
		Category: CategoryBackendRejected,
		Status:   status,
		Message:  message,
		Err:      ErrBackendRejected,
	}
}

// Network wraps a transport or decoding failure.
func Network(op string, cause error) *Error {
	return &Error{
		Op:       op,
		Category: CategoryNetwork,
		Message:  cause.Error(),
		Err:      fmt.Errorf("%w: %w", ErrNetwork, cause),
	}
}

// CategoryOf reports the category of err, looking through wrapping.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Category != "" {
		return e.Category
	}
	switch {
	case errors.Is(err, ErrAuthRequired):
		return CategoryAuthRequired
	case errors.Is(err, ErrVendorConflict):
		return CategoryVendorConflict
	case errors.Is(err, ErrUnavailable):
		return CategoryUnavailable
	case errors.Is(err, ErrPreconditionFailed), errors.Is(err, ErrNeedsVendorSelection):
		return CategoryPrecondition
	case errors.Is(err, ErrBackendRejected):
		return CategoryBackendRejected
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrCircuitOpen):
		return CategoryNetwork
	case IsConfigurationError(err):
		return CategoryConfig
	}
	return CategoryUnknown
}

// MessageOf returns the human-readable message carried by err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// StatusOf returns the backend HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsTransient checks if an error is a transient network condition.
// Transient errors are surfaced to the user; nothing retries them.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrCircuitOpen)
}

// IsAuth checks if an error means the user must log in.
func IsAuth(err error) bool {
	if errors.Is(err, ErrAuthRequired) {
		return true
	}
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
