// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"intrawatch/internal/notify"
	"intrawatch/internal/reconcile"
)

// Runner runs one reconciliation cycle.
type Runner interface {
	RunCycle(ctx context.Context) (*reconcile.Report, error)
}

// Scheduler runs cycles back to back, waiting the interval after each one
// completes. Two cycles never overlap however long a cycle takes.
type Scheduler struct {
	runner   Runner
	notifier notify.Notifier
	logger   *zap.Logger
	interval atomic.Int64
}

func New(runner Runner, notifier notify.Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	s := &Scheduler{runner: runner, notifier: notifier, logger: logger}
	s.SetInterval(interval)
	return s
}

func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the wait used after the next completed cycle.
// Non-positive values are ignored.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	if old := s.interval.Swap(int64(d)); old != 0 && old != int64(d) {
		s.logger.Info("check interval changed", zap.Duration("interval", d))
	}
}

// Run executes a cycle immediately and then after every interval until ctx
// is cancelled (returns nil) or a cycle fails fatally (returns its error,
// after an error notification was attempted).
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", zap.Error(ctx.Err()))
			return nil
		case <-timer.C:
		}

		if _, err := s.runner.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if reconcile.IsFatal(err) {
				s.reportFatal(err)
				return err
			}
			s.logger.Warn("cycle failed, retrying next interval", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}

		next := s.Interval()
		s.logger.Debug("next check scheduled", zap.Duration("in", next))
		timer.Reset(next)
	}
}

func (s *Scheduler) reportFatal(err error) {
	s.logger.Error("fatal cycle error, stopping", zap.Error(err))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if nerr := s.notifier.Notify(ctx, notify.MessagePayload(notify.ErrorMessage(err))); nerr != nil {
		s.logger.Warn("sending error notification", zap.Error(nerr))
	}
}
