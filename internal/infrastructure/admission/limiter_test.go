package admission

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowUpToLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := New(time.Minute, 10, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		if !limiter.Allow("sess-1") {
			t.Fatalf("message %d within limit must be admitted", i+1)
		}
	}
	if limiter.Allow("sess-1") {
		t.Fatalf("11th message in the window must be rejected")
	}
}

func TestWindowSlides(t *testing.T) {
	clock := newFakeClock()
	limiter := New(time.Minute, 2, WithClock(clock.Now))

	if !limiter.Allow("sess-1") || !limiter.Allow("sess-1") {
		t.Fatalf("first two messages must be admitted")
	}
	if limiter.Allow("sess-1") {
		t.Fatalf("window is full")
	}

	clock.Advance(61 * time.Second)
	if !limiter.Allow("sess-1") {
		t.Fatalf("window must slide after 60s")
	}
}

func TestRejectedCallRecordsNothing(t *testing.T) {
	clock := newFakeClock()
	limiter := New(time.Minute, 1, WithClock(clock.Now))

	if !limiter.Allow("sess-1") {
		t.Fatalf("first message must be admitted")
	}
	// Hammer the full window; rejections must not extend the lockout.
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		limiter.Allow("sess-1")
	}
	clock.Advance(10 * time.Second) // 60s after the single admitted message
	if !limiter.Allow("sess-1") {
		t.Fatalf("probing a full window must not extend it")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := New(time.Minute, 1, WithClock(clock.Now))

	if !limiter.Allow("sess-1") {
		t.Fatalf("sess-1 first message must be admitted")
	}
	if !limiter.Allow("sess-2") {
		t.Fatalf("sess-2 must not share sess-1's window")
	}
}

func TestConcurrentExactness(t *testing.T) {
	limiter := New(time.Minute, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("sess-1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Fatalf("expected exactly 10 admitted under contention, got %d", admitted)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	clock := newFakeClock()
	limiter := New(time.Minute, 10, WithClock(clock.Now))

	for i := 0; i < 40; i++ {
		limiter.Allow(fmt.Sprintf("sess-%d", i))
	}
	if got := limiter.sessionCount(); got != 40 {
		t.Fatalf("expected 40 tracked sessions, got %d", got)
	}

	clock.Advance(6 * time.Minute)
	limiter.Allow("sess-0") // refreshes one session
	limiter.sweep()

	if got := limiter.sessionCount(); got != 1 {
		t.Fatalf("expected only the refreshed session to survive, got %d", got)
	}
}
