package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors should count toward the threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts transport failures and 5xx answers. A 4xx
// answer means the backend is up and said no; caller cancellation is not the
// backend's fault either.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if status := errs.StatusOf(err); status > 0 {
		return status >= 500
	}
	return true
}

// Config holds configuration for the circuit breaker
type Config struct {
	// Name identifies the circuit breaker in logs
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// SleepWindow is how long to wait before entering half-open state
	SleepWindow time.Duration

	// HalfOpenRequests is the number of trial requests in half-open state
	HalfOpenRequests int

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	Logger logger.Logger
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Name:             "backend",
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 1,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           logger.NoOp{},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1: %w", errs.ErrInvalidConfiguration)
	}
	if c.SleepWindow <= 0 {
		return fmt.Errorf("sleep window must be positive: %w", errs.ErrInvalidConfiguration)
	}
	if c.HalfOpenRequests < 1 {
		return fmt.Errorf("half-open requests must be at least 1: %w", errs.ErrInvalidConfiguration)
	}
	return nil
}

// CircuitBreaker fails fast after repeated backend failures
type CircuitBreaker struct {
	config *Config
	now    func() time.Time

	mu             sync.Mutex
	state          CircuitState
	failures       int
	stateChangedAt time.Time
	halfOpenActive int
	listeners      []func(name string, from, to CircuitState)
}

// NewCircuitBreaker creates a circuit breaker
func NewCircuitBreaker(config *Config) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = logger.NoOp{}
	}
	return &CircuitBreaker{
		config:         config,
		now:            time.Now,
		state:          StateClosed,
		stateChangedAt: time.Now(),
	}, nil
}

// Execute runs fn with circuit breaker protection. While the circuit is open it
// returns an error wrapping errs.ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.acquire() {
		cb.config.Logger.Info("Circuit breaker rejected execution", map[string]interface{}{
			"name":  cb.config.Name,
			"state": cb.GetState(),
		})
		return errs.New("resilience.Execute", errs.CategoryNetwork,
			fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, errs.ErrCircuitOpen))
	}

	err := fn(ctx)
	cb.complete(err)
	return err
}

// CanExecute reports whether a call would be let through right now
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		return cb.halfOpenActive < cb.config.HalfOpenRequests
	default:
		return true
	}
}

// GetState returns the current state as a string
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state.String()
}

// AddStateChangeListener registers a callback for state transitions
func (cb *CircuitBreaker) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, listener)
}

// Reset closes the circuit and clears failure counts
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.halfOpenActive = 0
	cb.transitionLocked(StateClosed)
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if cb.halfOpenActive >= cb.config.HalfOpenRequests {
			return false
		}
		cb.halfOpenActive++
	}
	return true
}

func (cb *CircuitBreaker) complete(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.config.ErrorClassifier(err)

	if cb.state == StateHalfOpen {
		cb.halfOpenActive--
		if failed {
			cb.transitionLocked(StateOpen)
			return
		}
		cb.failures = 0
		cb.transitionLocked(StateClosed)
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold {
		cb.config.Logger.Warn("Circuit breaker opening", map[string]interface{}{
			"name":     cb.config.Name,
			"failures": cb.failures,
			"error":    err.Error(),
		})
		cb.transitionLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.stateChangedAt) >= cb.config.SleepWindow {
		cb.halfOpenActive = 0
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateChangedAt = cb.now()
	cb.config.Logger.Info("Circuit breaker state change", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
	for _, l := range cb.listeners {
		l(cb.config.Name, from, to)
	}
}
