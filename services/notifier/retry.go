package notifier

import (
	"context"
	"time"
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n <= 0 || p.InitialBackoff <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= multiplier
		if p.MaxBackoff > 0 && time.Duration(d) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls fn until it succeeds, returns a non-transient error, or attempts run out. It
// returns the number of retries performed and the last error.
func (p RetryPolicy) Run(ctx context.Context, sleep sleepFunc, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
				return attempt - 1, err
			}
			notificationRetries.Inc()
		}
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return attempt, err
		}
	}
	return maxAttempts - 1, err
}
