package credlock

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// Register validates the inputs, stores a layered-hash credential record,
// and issues a session. Validation failures surface the specific rule that
// failed; only credential verification is deliberately opaque.
func (e *Engine) Register(ctx context.Context, name, email, plaintext string) (*LoginResult, error) {
	if e == nil || e.records == nil {
		return nil, ErrEngineNotReady
	}

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := e.validateRegistration(name, email, plaintext); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	blob, err := e.cipher.Hash(plaintext)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The store has no conditional write, so the uniqueness check and the
	// insert happen under one lock.
	e.regMu.Lock()
	existing, err := e.getUserByEmail(ctx, email)
	if err != nil {
		e.regMu.Unlock()
		e.metricInc(MetricRegisterFailure)
		return nil, err
	}
	if existing != nil {
		e.regMu.Unlock()
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrDuplicateEmail, nil)
		return nil, ErrDuplicateEmail
	}

	user := &User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Credential: Credential{
			Scheme: SchemeLayered,
			Blob:   blob,
		},
		Role:      e.config.Account.DefaultRole,
		CreatedAt: e.now().UTC(),
	}
	err = e.putUser(ctx, user)
	e.regMu.Unlock()
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return nil, err
	}

	sess, err := e.sessionStore.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, sess.Token, nil, nil)

	return &LoginResult{User: user, Session: sess}, nil
}

func (e *Engine) validateRegistration(name, email, plaintext string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrNameRejected)
	}
	if e.profanity != nil && e.profanity.IsProfane(name) {
		return ErrNameRejected
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return validatePassword(plaintext)
}

// validatePassword enforces the credential policy: 8-128 characters with at
// least one upper-case letter, one lower-case letter, and one digit. The
// wrapped message names the rule that failed.
func validatePassword(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrPasswordPolicy, minPasswordLength)
	}
	if len(plaintext) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrPasswordPolicy, maxPasswordLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	switch {
	case !hasUpper:
		return fmt.Errorf("%w: password must contain an upper-case letter", ErrPasswordPolicy)
	case !hasLower:
		return fmt.Errorf("%w: password must contain a lower-case letter", ErrPasswordPolicy)
	case !hasDigit:
		return fmt.Errorf("%w: password must contain a digit", ErrPasswordPolicy)
	}
	return nil
}
