// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	_, err := WaitSignal(ctx, d, nil)
	return err
}

// WaitSignal waits for the duration, a value on signal or the end of ctx,
// whichever comes first. It reports whether signal fired. A nil signal never fires.
func WaitSignal(ctx context.Context, d time.Duration, signal <-chan struct{}) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-signal:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}
