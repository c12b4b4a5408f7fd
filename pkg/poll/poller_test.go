package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/pkg/errs"
)

func TestPollerRunsImmediatelyAndPeriodically(t *testing.T) {
	var calls atomic.Int32
	p := New(10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, WithName("test"))

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.True(t, p.Running())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerDropsTicksWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p := New(5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool { return p.Stats().Dropped >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, p.InFlight())

	close(release)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPollerTrigger(t *testing.T) {
	var calls atomic.Int32
	p := New(time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	p.Trigger()
	assert.Zero(t, p.Stats().Dropped, "trigger on a stopped poller is ignored")

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	assert.Eventually(t, func() bool { return calls.Load() == 1 && !p.InFlight() }, time.Second, time.Millisecond)

	p.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestPollerStopWaitsForRun(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	p := New(time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	require.NoError(t, p.Start(context.Background()))
	<-started
	p.Stop()

	assert.True(t, finished.Load())
	assert.False(t, p.Running())
	assert.Equal(t, uint64(1), p.Stats().Failures)

	p.Stop()
}

func TestPollerLifecycle(t *testing.T) {
	p := New(time.Hour, func(ctx context.Context) error { return nil })

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, errors.Is(p.Start(context.Background()), ErrRunning))

	p.Stop()
	require.NoError(t, p.Start(context.Background()), "a stopped poller can be restarted")
	p.Stop()
}

func TestPollerParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := New(5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, p.Start(ctx))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	p.Stop()

	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestPollerCountsFailures(t *testing.T) {
	p := New(5*time.Millisecond, func(ctx context.Context) error {
		return errs.Network("test", errors.New("boom"))
	})

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return p.Stats().Failures >= 2 }, time.Second, time.Millisecond)
	p.Stop()

	s := p.Stats()
	assert.Equal(t, s.Runs, s.Failures)
}

func TestPollerRejectsBadConfig(t *testing.T) {
	err := New(0, func(ctx context.Context) error { return nil }).Start(context.Background())
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))

	err = New(time.Second, nil).Start(context.Background())
	assert.True(t, errs.IsConfigurationError(err))
}
