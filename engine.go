package credlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/credlock/credlock/internal/rate"
	"github.com/credlock/credlock/internal/stores"
	"github.com/credlock/credlock/password"
	"github.com/credlock/credlock/session"
	"github.com/credlock/credlock/store"
	"github.com/credlock/credlock/token"
)

// Engine is the credential-security core. It owns the layered password
// cipher, the dual-signed token issuer, sessions, reset tokens, and the
// rate limiter, all backed by a single [store.Store].
//
// Engine instances are configured through [Builder] and treated as
// immutable after Build.
type Engine struct {
	config       Config
	records      store.Store
	sessionStore *session.Store
	resetStore   *stores.ResetTokenStore
	rateLimiter  *rate.Limiter
	cipher       *password.Cipher
	tokenIssuer  *token.Issuer
	tokenVerify  *token.Verifier
	profanity    ProfanityFilter
	audit        *auditDispatcher
	metrics      *Metrics
	clock        func() time.Time

	// regMu serializes the duplicate-email check against the user write.
	// The store interface has no compare-and-swap, so registration takes
	// a process-wide lock instead.
	regMu sync.Mutex

	sweepDone chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// Close stops the background reaper and reset-token sweep and flushes the
// audit pipeline. Safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.rateLimiter != nil {
			e.rateLimiter.Stop()
		}
		if e.sweepDone != nil {
			close(e.sweepDone)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// startResetSweep launches the periodic removal of expired reset tokens.
func (e *Engine) startResetSweep(interval time.Duration) {
	e.sweepDone = make(chan struct{})
	e.sweepWG.Add(1)

	go func() {
		defer e.sweepWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.resetStore.CleanupExpired(context.Background()); err != nil {
					log.Printf("credlock: reset token sweep: %v", err)
				}
			case <-e.sweepDone:
				return
			}
		}
	}()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
USER RECORD ACCESS
====================================
*/

func (e *Engine) getUserByID(ctx context.Context, id string) (*User, error) {
	raw, err := e.records.Get(ctx, store.TableUsers, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %q: %w", id, err)
	}
	return &u, nil
}

// getUserByEmail scans the user table for a case-insensitive email match.
// Emails are normalized to lower case at registration, so the fold here
// only matters for records written by older tooling.
func (e *Engine) getUserByEmail(ctx context.Context, email string) (*User, error) {
	needle := strings.ToLower(strings.TrimSpace(email))
	if needle == "" {
		return nil, nil
	}

	var found *User
	err := e.records.Scan(ctx, store.TableUsers, func(key string, value []byte) error {
		var u User
		if err := json.Unmarshal(value, &u); err != nil {
			return nil
		}
		if strings.ToLower(u.Email) == needle {
			found = &u
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return found, nil
}

func (e *Engine) putUser(ctx context.Context, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := e.records.Put(ctx, store.TableUsers, u.ID, raw); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

/*
====================================
RATE LIMITING
====================================
*/

func (e *Engine) policyParams(policy RateLimitPolicy) (time.Duration, int) {
	switch policy {
	case PolicyLogin:
		return e.config.RateLimit.LoginWindow, e.config.RateLimit.LoginMax
	case PolicyMutation:
		return e.config.RateLimit.MutationWindow, e.config.RateLimit.MutationMax
	default:
		return e.config.RateLimit.APIWindow, e.config.RateLimit.APIMax
	}
}

// CheckRateLimit records one request for identifier under the named policy
// and reports whether it should be refused. A limited result carries a
// [RateLimitError] with the window's reset time.
func (e *Engine) CheckRateLimit(ctx context.Context, policy RateLimitPolicy, identifier string) (rate.Result, error) {
	if e == nil || e.rateLimiter == nil {
		return rate.Result{}, ErrEngineNotReady
	}
	if identifier == "" {
		identifier = clientIPFromContext(ctx)
	}

	window, max := e.policyParams(policy)
	res := e.rateLimiter.Check(string(policy)+":"+identifier, window, max)
	if res.Limited {
		e.emitRateLimit(ctx, string(policy), identifier)
		return res, &RateLimitError{Limit: max, ResetTime: res.ResetTime}
	}
	return res, nil
}
