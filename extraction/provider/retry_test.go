package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// scriptedCompleter fails the first `fail` calls, then answers with out.
type scriptedCompleter struct {
	fail  int
	out   string
	err   error
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	s.calls++
	if s.calls <= s.fail {
		return "", s.err
	}
	return s.out, nil
}

func recordSleeps(delays *[]time.Duration) CallerOption {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestCaller_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: 2, out: "  {\"entities\": []}\n", err: errors.New("503 Service Unavailable")}
	var delays []time.Duration
	caller := NewCaller(c, recordSleeps(&delays))

	out, err := caller.Invoke(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != `{"entities": []}` {
		t.Fatalf("out=%q, want trimmed completion", out)
	}
	if c.calls != 3 {
		t.Fatalf("calls=%d, want 3", c.calls)
	}
	if !reflect.DeepEqual(delays, []time.Duration{time.Second, 2 * time.Second}) {
		t.Fatalf("delays=%v, want [1s 2s]", delays)
	}
}

func TestCaller_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	c := &scriptedCompleter{fail: 100, err: cause}
	var delays []time.Duration
	caller := NewCaller(c, recordSleeps(&delays))

	_, err := caller.Invoke(context.Background(), Request{User: "hi"})
	var re *RetryError
	if !errors.As(err, &re) {
		t.Fatalf("err=%v, want *RetryError", err)
	}
	if re.Attempts != 3 {
		t.Fatalf("Attempts=%d, want 3", re.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err does not wrap the last failure: %v", err)
	}
	if c.calls != 3 {
		t.Fatalf("calls=%d, want 3", c.calls)
	}
	// No wait after the final attempt.
	if !reflect.DeepEqual(delays, []time.Duration{time.Second, 2 * time.Second}) {
		t.Fatalf("delays=%v, want [1s 2s]", delays)
	}
}

func TestCaller_SucceedsFirstTryWithoutSleeping(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{out: "ok"}
	var delays []time.Duration
	out, err := NewCaller(c, recordSleeps(&delays)).Invoke(context.Background(), Request{})
	if err != nil || out != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if len(delays) != 0 {
		t.Fatalf("delays=%v, want none", delays)
	}
}

func TestCaller_CustomAttemptsAndBackoff(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: 100, err: errors.New("boom")}
	var delays []time.Duration
	caller := NewCaller(c,
		WithMaxAttempts(4),
		WithBackoff(BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 3}),
		recordSleeps(&delays),
	)

	_, err := caller.Invoke(context.Background(), Request{})
	var re *RetryError
	if !errors.As(err, &re) || re.Attempts != 4 {
		t.Fatalf("err=%v, want *RetryError with 4 attempts", err)
	}
	want := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("delays=%v, want %v", delays, want)
	}
}

func TestCaller_CanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &scriptedCompleter{fail: 100, err: errors.New("boom")}
	_, err := NewCaller(c).Invoke(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if c.calls != 1 {
		t.Fatalf("calls=%d, want 1", c.calls)
	}
}

func TestNewCaller_NonPositiveAttemptsUseDefault(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: 100, err: errors.New("boom")}
	var delays []time.Duration
	_, err := NewCaller(c, WithMaxAttempts(0), recordSleeps(&delays)).Invoke(context.Background(), Request{})
	var re *RetryError
	if !errors.As(err, &re) || re.Attempts != DefaultMaxAttempts {
		t.Fatalf("err=%v, want %d attempts", err, DefaultMaxAttempts)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"rate_limit": errors.New("429 Too Many Requests"),
		"server":     errors.New("Ollama: status 502: bad gateway"),
		"timeout":    context.DeadlineExceeded,
		"other":      errors.New("connection refused"),
	}
	for want, err := range cases {
		if got := classifyError(err); got != want {
			t.Fatalf("classifyError(%v)=%q, want %q", err, got, want)
		}
	}
}
