package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterSpacesSameHost(t *testing.T) {
	l := New(Config{Interval: 100 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx, "https://api.example/ep1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	start = time.Now()
	if err := l.Wait(ctx, "https://api.example/ep2"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiterDifferentHosts(t *testing.T) {
	l := New(Config{Interval: time.Second})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example/1"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://b.example/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("host b blocked unexpectedly")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "https://api.example/ep"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("disabled limiter should not block, took %v", time.Since(start))
	}
}

func TestLimiterCanceled(t *testing.T) {
	l := New(Config{Interval: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, "https://api.example/ep"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://api.example/ep"); err == nil {
		t.Fatal("expected error after cancellation")
	}
}
