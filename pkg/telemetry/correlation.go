package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	userIDKey        contextKey = "user_id"
)

const (
	// HeaderCorrelationID ties together every request of one user action
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID identifies a single backend request
	HeaderRequestID = "X-Request-ID"
)

// WithCorrelationID returns ctx carrying id, generating one when id is empty.
// One user action (an add, a toggle) gets one correlation id shared by the
// mutation and the refresh that follows it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// EnsureCorrelationID keeps an existing correlation id or adds a new one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if CorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, "")
}

// WithUserID returns ctx carrying the acting user's id for log enrichment.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// CorrelationID retrieves the correlation id from ctx.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// RequestID retrieves the request id from ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UserID retrieves the user id from ctx.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// InjectHeaders writes the correlation id and a fresh request id onto an
// outgoing request and returns the request id.
func InjectHeaders(ctx context.Context, headers http.Header) string {
	if id := CorrelationID(ctx); id != "" {
		headers.Set(HeaderCorrelationID, id)
	}
	requestID := uuid.New().String()
	headers.Set(HeaderRequestID, requestID)
	return requestID
}

// Middleware extracts or generates correlation and request ids for incoming
// requests, echoes them on the response, and tags the active span.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithCorrelationID(r.Context(), r.Header.Get(HeaderCorrelationID))

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, requestIDKey, requestID)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("correlation.id", CorrelationID(ctx)),
				attribute.String("request.id", requestID),
			)
		}

		w.Header().Set(HeaderCorrelationID, CorrelationID(ctx))
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnrichLogFields adds correlation and trace ids to log fields
func EnrichLogFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	if id := CorrelationID(ctx); id != "" {
		fields["correlation_id"] = id
	}
	if id := RequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := UserID(ctx); id != "" {
		fields["user_id"] = id
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	return fields
}
