package rate

import (
	"sync"
	"time"
)

// Result reports the outcome of a single rate-limit check.
type Result struct {
	// Limited is true when the identifier has exceeded the window budget.
	Limited bool
	// Remaining is the number of requests left in the window, never negative.
	Remaining int
	// ResetTime is when the current window ends and the counter restarts.
	ResetTime time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter is an in-memory sliding-window abuse counter. Exactly one live
// entry exists per identifier; once a window's reset time passes, the next
// check starts a fresh window rather than merging with stale counts.
//
// Check's increment-and-compare runs under a single mutex, so concurrent
// requests for one identifier cannot race past the limit through a
// read-then-write gap. The map is bounded by the reaper started with
// [Limiter.Start]; there are no hidden global timers.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	reapOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New builds a [Limiter]. now may be nil ([time.Now]); tests inject a fake
// clock through it.
func New(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		entries: make(map[string]entry),
		now:     now,
		done:    make(chan struct{}),
	}
}

// Check counts one request for identifier against a max-per-window budget.
// The count keeps incrementing past the limit so continued abuse extends the
// recorded pressure, and Limited stays true until the window resets.
func (l *Limiter) Check(identifier string, window time.Duration, max int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[identifier]
	if !ok || !now.Before(e.resetTime) {
		e = entry{count: 1, resetTime: now.Add(window)}
		l.entries[identifier] = e
		return Result{
			Limited:   false,
			Remaining: clampNonNegative(max - 1),
			ResetTime: e.resetTime,
		}
	}

	e.count++
	l.entries[identifier] = e
	return Result{
		Limited:   e.count > max,
		Remaining: clampNonNegative(max - e.count),
		ResetTime: e.resetTime,
	}
}

// Reset discards the live window for identifier. Called after a successful
// login so earlier attempts stop counting against the caller.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// Len reports the number of live entries. Intended for tests and the
// loadtest harness.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start launches the background reaper that drops entries whose window has
// expired, bounding memory growth. Calling Start more than once is a no-op.
func (l *Limiter) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	l.reapOnce.Do(func() {
		l.wg.Add(1)
		go l.reapLoop(interval)
	})
}

// Stop terminates the reaper and waits for it to exit. Safe to call without
// a prior Start.
func (l *Limiter) Stop() {
	select {
	case <-l.done:
		return
	default:
	}
	close(l.done)
	l.wg.Wait()
}

func (l *Limiter) reapLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.reap()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) reap() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for identifier, e := range l.entries {
		if !now.Before(e.resetTime) {
			delete(l.entries, identifier)
		}
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
