package provider

import (
	"testing"
	"time"
)

func TestNextBackoffDelay(t *testing.T) {
	t.Parallel()

	cfg := DefaultBackoff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1); got != w {
			t.Fatalf("attempt %d: got=%v, want %v", i+1, got, w)
		}
	}
}

func TestNextBackoffDelay_Caps(t *testing.T) {
	t.Parallel()

	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 3 * time.Second}
	if got := NextBackoffDelay(cfg, 5); got != 3*time.Second {
		t.Fatalf("got=%v, want 3s", got)
	}
}

func TestNextBackoffDelay_Degenerate(t *testing.T) {
	t.Parallel()

	if got := NextBackoffDelay(BackoffConfig{}, 3); got != 0 {
		t.Fatalf("zero initial delay: got=%v, want 0", got)
	}
	// Multipliers below 1 never shrink the delay.
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 0.5}
	if got := NextBackoffDelay(cfg, 4); got != time.Second {
		t.Fatalf("got=%v, want 1s", got)
	}
}
