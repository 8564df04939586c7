package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// RetryPolicy bounds an exponential backoff.
type RetryPolicy struct {
	// Retries after the first attempt.
	Retries int
	// BaseDelay is the first wait. It doubles after every failure.
	BaseDelay time.Duration
	// CallTimeout bounds each attempt.
	CallTimeout time.Duration
}

// Retry runs op until it succeeds, returns a non-transient error, the policy is exhausted
// or ctx ends. Only errors classified as transient are retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = policy.BaseDelay << max(policy.Retries, 0)
	exp.MaxElapsedTime = 0

	if policy.BaseDelay <= 0 {
		exp.InitialInterval = time.Millisecond
	}

	var b backoff.BackOff = backoff.WithMaxRetries(exp, uint64(max(policy.Retries, 0)))
	b = backoff.WithContext(b, ctx)

	return backoff.RetryWithData(func() (T, error) {
		callCtx := ctx

		if policy.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, policy.CallTimeout)

			defer cancel()
		}

		v, err := op(callCtx)
		if err != nil && !errors.IsTransient(err) {
			return v, backoff.Permanent(err)
		}

		return v, err
	}, b)
}
