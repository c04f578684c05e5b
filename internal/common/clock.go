package common

import (
	"context"
	"time"
)

// Sleeper performs the timed waits of the extraction flow (backoff and page pacing).
// Tests substitute a fake that records durations instead of blocking.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper blocks on a timer and returns early with ctx.Err() if ctx is done.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
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
