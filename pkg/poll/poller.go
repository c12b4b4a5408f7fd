package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/codes"

	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/telemetry"
)

// ErrRunning is returned by Start on a poller that is already running.
var ErrRunning = errors.New("poller already running")

// Task is one unit of periodic work. It should return promptly once ctx is
// cancelled.
type Task func(ctx context.Context) error

// Stats counts what a poller has done since it was created.
type Stats struct {
	Runs     uint64
	Failures uint64
	Dropped  uint64
}

// Poller runs a Task every interval. At most one run is in flight: a tick or
// Trigger that arrives while the task is still running is dropped, not
// queued.
type Poller struct {
	name      string
	interval  time.Duration
	task      Task
	logger    logger.Logger
	telemetry *telemetry.Telemetry

	mu      sync.Mutex
	cancel  context.CancelFunc
	trigger chan struct{}
	wg      sync.WaitGroup

	inFlight atomic.Bool
	runs     atomic.Uint64
	failures atomic.Uint64
	dropped  atomic.Uint64
}

// Option configures a Poller.
type Option func(*Poller)

// WithName names the poller in logs, spans and metrics.
func WithName(name string) Option {
	return func(p *Poller) { p.name = name }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) { p.logger = l.WithField("component", "poll") }
}

// WithTelemetry sets the tracer and metric instruments.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(p *Poller) { p.telemetry = t }
}

// New creates a stopped poller.
func New(interval time.Duration, task Task, opts ...Option) *Poller {
	p := &Poller{
		name:      "poll",
		interval:  interval,
		task:      task,
		logger:    logger.NoOp{},
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the task once immediately and then every interval until ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return &errs.Error{
			Op:       "poll.Start",
			Category: errs.CategoryConfig,
			ID:       p.name,
			Message:  "poll interval must be positive",
			Err:      errs.ErrInvalidConfiguration,
		}
	}
	if p.task == nil {
		return errs.New("poll.Start", errs.CategoryConfig, errs.ErrMissingConfiguration)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.trigger = make(chan struct{}, 1)

	p.wg.Add(1)
	go p.loop(ctx, p.trigger)

	p.logger.Info("Poller started", map[string]interface{}{
		"poller":   p.name,
		"interval": p.interval.String(),
	})
	return nil
}

// Stop cancels the loop and waits for it, and any run in flight, to return.
// Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.trigger = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("Poller stopped", map[string]interface{}{"poller": p.name})
}

// Trigger asks for a run now. It is dropped when a run is already in flight
// and ignored when the poller is stopped.
func (p *Poller) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trigger == nil {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
		p.dropped.Add(1)
	}
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// InFlight reports whether the task is running right now.
func (p *Poller) InFlight() bool {
	return p.inFlight.Load()
}

// Stats returns the run counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Runs:     p.runs.Load(),
		Failures: p.failures.Load(),
		Dropped:  p.dropped.Load(),
	}
}

func (p *Poller) loop(ctx context.Context, trigger <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		case <-trigger:
			p.fire(ctx)
		}
	}
}

// fire starts a run unless one is in flight.
func (p *Poller) fire(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.dropped.Add(1)
		p.logger.Debug("Run still in flight, dropping tick", map[string]interface{}{"poller": p.name})
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.run(ctx)
	}()
}

func (p *Poller) run(ctx context.Context) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := p.telemetry.StartSpan(ctx, "poll."+p.name)
	defer span.End()

	start := time.Now()
	err := p.task(ctx)
	p.runs.Add(1)
	p.telemetry.RecordPollRun(ctx, p.name, err)

	if err != nil {
		p.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.MessageOf(err))
		if ctx.Err() == nil {
			p.logger.Warn("Poll run failed", telemetry.EnrichLogFields(ctx, map[string]interface{}{
				"poller":      p.name,
				"error":       err.Error(),
				"duration_ms": time.Since(start).Milliseconds(),
			}))
		}
		return
	}
	span.SetStatus(codes.Ok, "")
}
