// Package readiness waits for freshly started containers to accept work.
package readiness

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kinecosystem/localnet/pkg/errors"
)

// Check returns nil once the target is ready.
type Check func(ctx context.Context) error

// Options controls a wait.
type Options struct {
	// MinDelay is always slept before the first check.
	MinDelay time.Duration
	// Timeout bounds polling after MinDelay. Zero disables polling.
	Timeout time.Duration
	// Interval is the first backoff interval.
	Interval time.Duration
}

// Wait sleeps MinDelay and then polls check with exponential backoff until it
// succeeds or Timeout elapses. A nil check keeps the fixed delay only.
func Wait(ctx context.Context, name string, opts Options, check Check) error {
	if err := Sleep(ctx, opts.MinDelay); err != nil {
		return err
	}
	if check == nil || opts.Timeout <= 0 {
		slog.Info("readiness_assumed", "target", name, "delay", opts.MinDelay)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.Interval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 250 * time.Millisecond
	}
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = opts.Timeout

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := check(ctx)
		if err != nil {
			slog.Info("readiness_pending", "target", name, "attempt", attempts, "error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		slog.Error("readiness_timeout", "target", name, "attempts", attempts, "error", err)
		return errors.Wrapf(err, "%s not ready after %s", name, opts.Timeout)
	}

	slog.Info("readiness_confirmed", "target", name, "attempts", attempts)
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
