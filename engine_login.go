package credlock

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/credlock/credlock/password"
)

// Login verifies the credential for email and returns the user with a fresh
// session. Every failure of the credential check maps to
// [ErrInvalidCredentials]; callers cannot distinguish an unknown email from
// a wrong password.
//
// Login is rate-limited per client identifier under the login policy. A
// successful login clears the identifier's window.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if e == nil || e.records == nil {
		return nil, ErrEngineNotReady
	}

	identifier := clientIPFromContext(ctx)
	if identifier == "" {
		identifier = strings.ToLower(strings.TrimSpace(email))
	}

	window, max := e.policyParams(PolicyLogin)
	res := e.rateLimiter.Check(string(PolicyLogin)+":"+identifier, window, max)
	if res.Limited {
		e.metricInc(MetricLoginRateLimited)
		e.emitRateLimit(ctx, string(PolicyLogin), identifier)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrRateLimited, nil)
		return nil, &RateLimitError{Limit: max, ResetTime: res.ResetTime}
	}

	user, err := e.getUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !e.verifyCredential(ctx, user, plaintext) {
		e.metricInc(MetricLoginFailure)
		userID := ""
		if user != nil {
			userID = user.ID
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = e.now().UTC()
	if err := e.putUser(ctx, user); err != nil {
		// LastLogin is advisory; the login itself already succeeded.
		log.Printf("credlock: persist lastLogin for %s: %v", user.ID, err)
	}

	sess, err := e.sessionStore.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	e.rateLimiter.Reset(string(PolicyLogin) + ":" + identifier)
	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, sess.Token, nil, nil)

	return &LoginResult{User: user, Session: sess}, nil
}

// verifyCredential dispatches on the credential scheme. Unknown schemes fail
// closed. A successful legacy verification triggers the transparent upgrade
// to the layered format.
func (e *Engine) verifyCredential(ctx context.Context, user *User, plaintext string) bool {
	switch user.Credential.Scheme {
	case SchemeLayered:
		return e.cipher.Verify(plaintext, user.Credential.Blob)
	case SchemeLegacy:
		if !password.VerifyLegacy(plaintext, user.Credential.LegacySalt, user.Credential.LegacyHash) {
			return false
		}
		e.migrateCredential(ctx, user, plaintext)
		return true
	default:
		return false
	}
}

// migrateCredential rewrites a verified legacy credential as a layered one.
// Failure here never alters the login outcome: the caller already holds a
// positive verification for this request.
func (e *Engine) migrateCredential(ctx context.Context, user *User, plaintext string) {
	blob, err := e.cipher.Hash(plaintext)
	if err != nil {
		e.metricInc(MetricCredentialMigrationFailed)
		log.Printf("credlock: migrate credential for %s: %v", user.ID, err)
		return
	}

	user.Credential = Credential{
		Scheme: SchemeLayered,
		Blob:   blob,
	}
	if err := e.putUser(ctx, user); err != nil {
		e.metricInc(MetricCredentialMigrationFailed)
		log.Printf("credlock: persist migrated credential for %s: %v", user.ID, err)
		return
	}

	e.metricInc(MetricCredentialMigrated)
	e.emitAudit(ctx, auditEventCredentialMigrated, true, user.ID, "", nil, nil)
}

// Logout invalidates the session token. Unknown tokens are not an error.
func (e *Engine) Logout(ctx context.Context, sessionToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if err := e.sessionStore.Delete(ctx, sessionToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", sessionToken, nil, nil)
	return nil
}

// FindSession resolves a session token to its record. Missing and expired
// sessions both return (nil, nil).
func (e *Engine) FindSession(ctx context.Context, sessionToken string) (*Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.sessionStore.Find(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		e.metricInc(MetricSessionExpired)
	}
	return sess, nil
}

// RequireAdmin resolves a session token and returns its user only when the
// account holds the admin role. Every other outcome is [ErrUnauthorized].
func (e *Engine) RequireAdmin(ctx context.Context, sessionToken string) (*User, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessionStore.Find(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthorized
	}

	user, err := e.getUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Role != RoleAdmin {
		return nil, ErrUnauthorized
	}
	return user, nil
}
