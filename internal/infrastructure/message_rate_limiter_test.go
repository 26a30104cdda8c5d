package infrastructure

import (
	"testing"
	"time"
)

func newTestLimiter(rate float64, burst int) (*MessageRateLimiter, *time.Time) {
	rl := NewMessageRateLimiter(rate, burst)
	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestMessageRateLimiter(t *testing.T) {
	t.Run("burst then deny", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 5)
		defer rl.Close()

		for i := 0; i < 5; i++ {
			if !rl.Allow("1:34600111222@s.whatsapp.net") {
				t.Fatalf("message %d should be allowed", i+1)
			}
		}
		if rl.Allow("1:34600111222@s.whatsapp.net") {
			t.Fatal("sixth message should be denied")
		}
		if rl.WaitTime("1:34600111222@s.whatsapp.net") <= 0 {
			t.Error("expected a positive wait time")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 1)
		defer rl.Close()

		if !rl.Allow("a") || !rl.Allow("b") {
			t.Fatal("first message per key should be allowed")
		}
		if rl.Allow("a") {
			t.Fatal("second message for a should be denied")
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		rl, clock := newTestLimiter(1, 1)
		defer rl.Close()

		rl.Allow("a")
		if rl.Allow("a") {
			t.Fatal("expected deny before refill")
		}
		*clock = clock.Add(1500 * time.Millisecond)
		if !rl.Allow("a") {
			t.Fatal("expected allow after refill")
		}
	})

	t.Run("reset and sweep", func(t *testing.T) {
		rl, clock := newTestLimiter(1, 1)
		defer rl.Close()

		rl.Allow("a")
		rl.Reset("a")
		if !rl.Allow("a") {
			t.Fatal("expected allow after reset")
		}

		*clock = clock.Add(11 * time.Minute)
		if removed := rl.sweep(); removed != 1 {
			t.Errorf("expected 1 idle bucket removed, got %d", removed)
		}
		if got := rl.GetStats()["active_contacts"]; got != 0 {
			t.Errorf("expected no active contacts, got %v", got)
		}
	})

	t.Run("active keys survive sweep", func(t *testing.T) {
		rl, clock := newTestLimiter(0.001, 1)
		defer rl.Close()

		rl.Allow("a")
		*clock = clock.Add(9 * time.Minute)
		if rl.Allow("a") {
			t.Fatal("expected deny while the bucket is empty")
		}
		*clock = clock.Add(9 * time.Minute)
		if removed := rl.sweep(); removed != 0 {
			t.Fatal("recently seen key was evicted")
		}
	})
}
