package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy retries lock conflicts with bounded exponential backoff.
// Any error that is not SQLITE_BUSY or SQLITE_LOCKED stops immediately.
type retryPolicy struct {
	maxRetries uint64
	interval   time.Duration
}

func newRetryPolicy(maxRetries int, interval time.Duration) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return retryPolicy{
		maxRetries: uint64(maxRetries),
		interval:   interval,
	}
}

// backOff builds a fresh schedule for one operation.
func (p retryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.interval
	exp.MaxInterval = 20 * p.interval
	exp.MaxElapsedTime = 0 // bounded by maxRetries instead
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.maxRetries), ctx)
}

// do runs op until it succeeds, fails with a non-busy error, the retries are
// used up or ctx is done. The last error from op is returned.
func (p retryPolicy) do(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
}
