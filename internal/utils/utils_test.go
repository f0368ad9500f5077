package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "returns empty when limit non-positive", input: "hello world", limit: 0, expect: ""},
		{name: "shorter than limit", input: "hello", limit: 10, expect: "hello"},
		{name: "truncates and adds ellipsis", input: "hello world", limit: 5, expect: "hello..."},
		{name: "counts runes not bytes", input: "지원자 이력서", limit: 3, expect: "지원자..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base, max := 100*time.Millisecond, time.Second
	expect := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for attempt, want := range expect {
		if got := Backoff(attempt, base, max); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}

func TestWaitForHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForUsesTimer(t *testing.T) {
	original := newTimer
	defer func() { newTimer = original }()

	var requested time.Duration
	newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		requested = d
		fired := make(chan time.Time, 1)
		fired <- time.Now()
		return fired, func() bool { return false }
	}

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requested != 3*time.Second {
		t.Fatalf("expected timer of 3s, got %s", requested)
	}
}

func TestWaitForStopsTimerOnCancellation(t *testing.T) {
	original := newTimer
	defer func() { newTimer = original }()

	started := make(chan struct{})
	stopped := make(chan struct{})
	newTimer = func(time.Duration) (<-chan time.Time, func() bool) {
		close(started)
		return make(chan time.Time), func() bool {
			close(stopped)
			return true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- WaitFor(ctx, 30*time.Second) }()

	<-started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatalf("expected the timer to be stopped when the context is cancelled")
	}
}
