package pipeline

import (
	"context"
	"time"
)

// retry calls fn up to attempts times, sleeping between failures with a
// delay that starts at initial and doubles up to maxDelay. It returns the
// last error, or ctx.Err() if the context ends while waiting.
func retry(ctx context.Context, attempts int, initial, maxDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			delay = min(delay*2, maxDelay)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
