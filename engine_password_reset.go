package credlock

import (
	"context"
	"fmt"
	"strings"
)

// RequestPasswordReset creates a one-time reset token for the account with
// the given email. To avoid account enumeration the call succeeds with a
// nil token when the email is unknown; only the token owner's out-of-band
// channel ever sees the difference.
//
// The call is rate-limited under the mutation policy.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*ResetToken, error) {
	if e == nil || e.resetStore == nil {
		return nil, ErrEngineNotReady
	}

	identifier := clientIPFromContext(ctx)
	if identifier == "" {
		identifier = strings.ToLower(strings.TrimSpace(email))
	}
	window, max := e.policyParams(PolicyMutation)
	res := e.rateLimiter.Check(string(PolicyMutation)+":"+identifier, window, max)
	if res.Limited {
		e.emitRateLimit(ctx, string(PolicyMutation), identifier)
		return nil, &RateLimitError{Limit: max, ResetTime: res.ResetTime}
	}

	user, err := e.getUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
			return map[string]string{"known_account": "false"}
		})
		return nil, nil
	}

	tok, err := e.resetStore.Create(ctx, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("create reset token: %w", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)
	return tok, nil
}

// ConfirmPasswordReset consumes a valid, unused, unexpired reset token and
// replaces the account's credential with a layered hash of newPassword.
// Replayed, expired, and unknown tokens all surface [ErrResetTokenInvalid].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tokenValue, newPassword string) error {
	if e == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}

	if err := validatePassword(newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	tok, err := e.resetStore.Validate(ctx, tokenValue)
	if err != nil {
		return fmt.Errorf("validate reset token: %w", err)
	}
	if tok == nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetReplay, false, "", "", ErrResetTokenInvalid, nil)
		return ErrResetTokenInvalid
	}

	user, err := e.getUserByID(ctx, tok.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}

	blob, err := e.cipher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Burn the token before swapping the credential so a failed write
	// leaves the token spent rather than reusable.
	ok, err := e.resetStore.MarkUsed(ctx, tokenValue)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if !ok {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}

	user.Credential = Credential{
		Scheme: SchemeLayered,
		Blob:   blob,
	}
	if err := e.putUser(ctx, user); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, "", nil, nil)
	return nil
}
