// Package httputil provides HTTP utilities for the package feed client.
//
// # Retry
//
// [Retry] wraps requests with automatic retry for transient failures:
//
//   - Network errors and timeouts
//   - 5xx server errors
//   - 429 rate limit responses
//
// Callers mark an error as transient by wrapping it with [Retryable]. Any other
// error stops immediately. Backoff is exponential, starting at [Policy.Delay]:
//
//	err := httputil.Retry(ctx, httputil.Policy{Attempts: 3, Delay: time.Second}, func() error {
//	    return fetch(ctx, url)
//	})
//	if errors.Is(err, httputil.ErrRetriesExhausted) {
//	    // every attempt failed with a transient error
//	}
//
// # Configuration
//
// [DefaultPolicy] is suitable for most use cases:
//
//   - Max attempts: 3
//   - Base backoff: 1 second
package httputil
