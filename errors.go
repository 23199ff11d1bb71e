package credlock

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned for every failed login, regardless
	// of whether the email existed or which stage of verification failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a session or role check fails.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid is returned for any bearer token that does not verify:
	// expired, forged, and malformed are deliberately indistinguishable.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimited is the sentinel matched by [RateLimitError].
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrDuplicateEmail rejects registration with an email already on file
	// (compared case-insensitively).
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrEmailInvalid rejects registration with a malformed email address.
	ErrEmailInvalid = errors.New("invalid email address")
	// ErrPasswordPolicy is wrapped with the specific failing rule, e.g.
	// "password must contain a digit".
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrNameRejected rejects a registration name flagged by the configured
	// profanity filter.
	ErrNameRejected = errors.New("name rejected")
	// ErrResetTokenInvalid is returned for a reset token that is missing,
	// already used, or expired, without distinguishing which.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrEngineNotReady is returned when Engine methods run before Build
	// wired the required dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError is returned when a rate-limit policy denies a request. It
// matches [ErrRateLimited] via errors.Is and carries the window reset time
// so callers can surface a backoff hint (X-RateLimit-Reset).
type RateLimitError struct {
	Limit     int
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
