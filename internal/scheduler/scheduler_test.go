package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrawatch/internal/errors"
	"intrawatch/internal/notify"
	"intrawatch/internal/reconcile"
)

type fakeRunner struct {
	calls   atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
	errAt   map[int32]error
	onCall  func(n int32)
}

func (r *fakeRunner) RunCycle(ctx context.Context) (*reconcile.Report, error) {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)

	n := r.calls.Add(1)
	if r.onCall != nil {
		r.onCall(n)
	}
	time.Sleep(r.delay)
	return &reconcile.Report{}, r.errAt[n]
}

type recorder struct {
	mu       sync.Mutex
	messages []*notify.Message
}

func (r *recorder) Notify(_ context.Context, p notify.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, p.Message)
	return nil
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{onCall: func(n int32) {
		if n == 3 {
			cancel()
		}
	}}
	s := New(runner, nil, time.Millisecond, nil)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(3), runner.calls.Load())
}

func TestRunNeverOverlaps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Cycles are much slower than the interval.
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	s := New(runner, nil, time.Millisecond, nil)

	require.NoError(t, s.Run(ctx))
	assert.False(t, runner.overlap.Load())
	assert.Greater(t, runner.calls.Load(), int32(1))
}

func TestRunStopsOnFatal(t *testing.T) {
	rec := &recorder{}
	runner := &fakeRunner{errAt: map[int32]error{
		1: errors.Transient("flaky", nil),
		2: errors.Unauthorized("autologin expired"),
	}}
	s := New(runner, rec, time.Millisecond, nil)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
	assert.Equal(t, int32(2), runner.calls.Load())

	require.Len(t, rec.messages, 1)
	assert.Equal(t, notify.ColorRed, rec.messages[0].Color)
	assert.Contains(t, rec.messages[0].Description, "autologin expired")
}

func TestRunKeepsGoingAfterAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{
		errAt: map[int32]error{1: errors.Internal("committing snapshot", nil)},
		onCall: func(n int32) {
			if n == 2 {
				cancel()
			}
		},
	}
	rec := &recorder{}
	s := New(runner, rec, time.Millisecond, nil)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(2), runner.calls.Load())
	assert.Empty(t, rec.messages)
}

func TestSetInterval(t *testing.T) {
	s := New(&fakeRunner{}, nil, time.Minute, nil)
	assert.Equal(t, time.Minute, s.Interval())

	s.SetInterval(5 * time.Second)
	assert.Equal(t, 5*time.Second, s.Interval())

	s.SetInterval(0)
	assert.Equal(t, 5*time.Second, s.Interval())
}
