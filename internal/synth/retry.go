package synth

import (
	"errors"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxRetries     = 3
	defaultRequestTimeout = 2 * time.Minute
)

// isRetryable checks if an error is worth retrying.
func isRetryable(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Retryable()
	}
	return false
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
