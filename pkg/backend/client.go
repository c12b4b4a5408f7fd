package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/resilience"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 4 << 20

// Client talks to the storefront REST backend. Every request carries the
// session's bearer token, a correlation id and W3C trace context. Requests are
// never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     logger.Logger
	telemetry  *telemetry.Telemetry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithCircuitBreaker guards every request with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l.WithField("component", "backend") }
}

// WithTelemetry sets the tracer and metric instruments.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *Client) { c.telemetry = t }
}

// New creates a backend client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call.
type request struct {
	op     string
	method string
	path   string
	token  string
	body   interface{}
	out    interface{}
}

func (c *Client) do(ctx context.Context, r request) error {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := c.telemetry.StartSpan(ctx, "backend."+r.op,
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.path),
	)
	defer span.End()

	start := time.Now()
	statusCode := 0

	call := func(ctx context.Context) error {
		var err error
		statusCode, err = c.roundTrip(ctx, r)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	c.telemetry.RecordBackendCall(ctx, r.op, statusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", statusCode))

	fields := telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation":   r.op,
		"method":      r.method,
		"path":        r.path,
		"status":      statusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.MessageOf(err))
		fields["error"] = err.Error()
		c.logger.Warn("Backend call failed", fields)
		return err
	}
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("Backend call succeeded", fields)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r request) (int, error) {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, errs.New("backend."+r.op, errs.CategoryUnknown, fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return 0, errs.Network("backend."+r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	telemetry.InjectHeaders(ctx, req.Header)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, errs.New("backend."+r.op, errs.CategoryNetwork, ctx.Err())
		}
		return 0, errs.Network("backend."+r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, errs.Network("backend."+r.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errs.Rejected("backend."+r.op, resp.StatusCode, serverMessage(data))
	}

	if r.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, r.out); err != nil {
			return resp.StatusCode, errs.Network("backend."+r.op, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return resp.StatusCode, nil
}

// serverMessage extracts the human-readable message from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Msg != "":
			return payload.Msg
		}
	}
	return strings.TrimSpace(string(body))
}

// requireToken rejects a call that needs a signed-in user.
func requireToken(op, token, userID string) error {
	if token == "" || userID == "" {
		return errs.New("backend."+op, errs.CategoryAuthRequired, errs.ErrAuthRequired)
	}
	return nil
}

// isFallbackWorthy reports whether a failed primary lookup should be retried
// against the secondary endpoint.
func isFallbackWorthy(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, errs.ErrCircuitOpen) {
		return false
	}
	return true
}

func decodeError(op string, err error) error {
	return errs.Network("backend."+op, fmt.Errorf("failed to decode response: %w", err))
}
