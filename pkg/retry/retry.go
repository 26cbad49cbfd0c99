// Package retry is the shared retry combinator used by the batch flusher
// and the prompt cache's refresh fetch. It wraps github.com/cenkalti/backoff/v4's
// constant backoff policy with a shouldRetry predicate, so callers classify
// errors with a plain function instead of repeating an inline retry loop.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Result reports how many attempts a Do call made, for tests that assert on
// exact attempt counts.
type Result struct {
	Attempts int
}

// Do runs fn, retrying on failure according to shouldRetry, up to maxRetries
// additional attempts (so at most maxRetries+1 calls to fn) with a constant
// delay between attempts. shouldRetry(err) returning false stops retrying
// immediately regardless of remaining budget; this is how a non-retryable
// classification (e.g. a configuration error) short-circuits the combinator.
//
// ctx bounds the whole retry loop; an attempt in flight when ctx is
// cancelled is not interrupted by Do itself; callers pass ctx through to
// fn so per-attempt timeouts are enforced by the caller's own derived
// context.
func Do(ctx context.Context, maxRetries int, delay time.Duration, shouldRetry func(error) bool, fn func(ctx context.Context) error) (Result, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxRetries)),
		ctx,
	)

	var result Result
	operation := func() error {
		result.Attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, policy)
	if err == nil {
		return result, nil
	}

	var permErr *backoff.PermanentError
	if errors.As(err, &permErr) {
		return result, permErr.Err
	}
	return result, err
}
