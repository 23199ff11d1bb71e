package rate

import (
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

func TestCheckLimitsSixthRequest(t *testing.T) {
	clock := newFakeClock()
	l := New(clock.Now)

	window := 15 * time.Minute
	for i := 1; i <= 5; i++ {
		res := l.Check("ip-1", window, 5)
		if res.Limited {
			t.Fatalf("request %d limited, want allowed", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("request %d remaining = %d, want %d", i, res.Remaining, 5-i)
		}
	}

	res := l.Check("ip-1", window, 5)
	if !res.Limited {
		t.Fatal("6th request not limited")
	}
	if res.Remaining != 0 {
		t.Fatalf("limited remaining = %d, want 0", res.Remaining)
	}
	want := clock.Now().Add(window)
	if !res.ResetTime.Equal(want) {
		t.Fatalf("reset time = %v, want %v", res.ResetTime, want)
	}
}

func TestCheckWindowExpiryStartsFresh(t *testing.T) {
	clock := newFakeClock()
	l := New(clock.Now)

	window := 15 * time.Minute
	for i := 0; i < 6; i++ {
		l.Check("ip-1", window, 5)
	}
	if !l.Check("ip-1", window, 5).Limited {
		t.Fatal("expected identifier to be limited inside the window")
	}

	clock.Advance(window)
	res := l.Check("ip-1", window, 5)
	if res.Limited {
		t.Fatal("request after window expiry still limited")
	}
	if res.Remaining != 4 {
		t.Fatalf("fresh window remaining = %d, want 4 (count reset to 1)", res.Remaining)
	}
}

func TestCheckIdentifiersIndependent(t *testing.T) {
	l := New(nil)

	for i := 0; i < 6; i++ {
		l.Check("ip-1", time.Minute, 5)
	}
	if res := l.Check("ip-2", time.Minute, 5); res.Limited {
		t.Fatal("unrelated identifier limited")
	}
}

func TestReset(t *testing.T) {
	l := New(nil)

	for i := 0; i < 6; i++ {
		l.Check("ip-1", time.Minute, 5)
	}
	l.Reset("ip-1")
	if res := l.Check("ip-1", time.Minute, 5); res.Limited {
		t.Fatal("identifier still limited after Reset")
	}
}

func TestCheckConcurrentNeverRacesPastLimit(t *testing.T) {
	l := New(nil)

	const (
		workers = 32
		perG    = 50
		max     = 100
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if !l.Check("ip-1", time.Hour, max).Limited {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != max {
		t.Fatalf("allowed = %d, want exactly %d", allowed, max)
	}
}

func TestReapRemovesExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	l := New(clock.Now)

	l.Check("stale", time.Minute, 5)
	clock.Advance(2 * time.Minute)
	l.Check("live", time.Minute, 5)

	l.reap()
	if n := l.Len(); n != 1 {
		t.Fatalf("entries after reap = %d, want 1", n)
	}
}

func TestStartStop(t *testing.T) {
	l := New(nil)
	l.Start(time.Millisecond)
	l.Check("ip-1", time.Minute, 5)

	// Stop must be idempotent and must not deadlock.
	l.Stop()
	l.Stop()
}
