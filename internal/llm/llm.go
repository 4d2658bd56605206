// Package llm defines the model collaborators used by the scorer and the
// retry policy shared by their clients.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder turns text into a dense vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator returns free text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options bounds a single external call
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

const defaultBackoff = 500 * time.Millisecond

// HTTPError is a non-2xx response from a model endpoint
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// permanent marks an error that must not be retried
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Retry returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Retry runs op with a per-attempt timeout and at most opts.MaxRetries retries,
// doubling the pause between attempts.
func Retry(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}

		lastErr = runAttempt(ctx, opts.Timeout, op)
		if lastErr == nil {
			return nil
		}
		if !retryable(ctx, lastErr) {
			break
		}
	}

	var p permanent
	if errors.As(lastErr, &p) {
		return p.err
	}
	return lastErr
}

func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var p permanent
	if errors.As(err, &p) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}

// FallbackGenerator tries Primary and falls back to Fallback on failure
type FallbackGenerator struct {
	Primary  Generator
	Fallback Generator
}

// Generate implements Generator
func (f FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := f.Primary.Generate(ctx, prompt)
	if err == nil {
		return out, nil
	}

	if f.Fallback != nil && ctx.Err() == nil {
		return f.Fallback.Generate(ctx, prompt)
	}

	return "", err
}
