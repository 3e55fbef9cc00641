package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultMaxAttempts = 3

// RetryError is returned once every attempt of a call has failed.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("remote call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Caller wraps a Completer with bounded, sequential retries and exponential backoff.
type Caller struct {
	completer   Completer
	maxAttempts int
	backoff     BackoffConfig
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger
}

type CallerOption func(*Caller)

func WithMaxAttempts(n int) CallerOption {
	return func(c *Caller) { c.maxAttempts = n }
}

func WithBackoff(cfg BackoffConfig) CallerOption {
	return func(c *Caller) { c.backoff = cfg }
}

// WithSleep replaces the wait between attempts. Tests use it to record delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) CallerOption {
	return func(c *Caller) { c.sleep = sleep }
}

func WithLogger(l zerolog.Logger) CallerOption {
	return func(c *Caller) { c.logger = l }
}

func NewCaller(completer Completer, opts ...CallerOption) *Caller {
	c := &Caller{
		completer:   completer,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff(),
		sleep:       sleepContext,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	return c
}

// Invoke performs one logical call. It returns the trimmed completion of the first successful
// attempt, or a *RetryError carrying the last failure once all attempts are used.
func (c *Caller) Invoke(ctx context.Context, req Request) (string, error) {
	if c.completer == nil {
		return "", errors.New("Caller: completer is nil")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out, err := c.completer.Complete(ctx, req)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := NextBackoffDelay(c.backoff, attempt)
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Str("class", classifyError(err)).
			Dur("retry_in", delay).
			Msg("remote call failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return "", &RetryError{Attempts: attempt, Err: err}
		}
	}
	return "", &RetryError{Attempts: c.maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func classifyError(err error) string {
	switch {
	case isRateLimitError(err):
		return "rate_limit"
	case isServerError(err):
		return "server"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
