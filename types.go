package credlock

import (
	"time"

	"github.com/credlock/credlock/internal/stores"
	"github.com/credlock/credlock/session"
	"github.com/credlock/credlock/token"
)

// Role is the authorization role stored on a credential record.
type Role string

const (
	// RoleUser is the default role for self-registered accounts.
	RoleUser Role = "user"
	// RoleAdmin grants access through [Engine.RequireAdmin].
	RoleAdmin Role = "admin"
)

// CredentialScheme discriminates the two credential shapes a record can
// hold. A record is either legacy or layered, never both; the engine
// switches on the scheme exhaustively and unknown values fail closed.
type CredentialScheme string

const (
	// SchemeLegacy marks a not-yet-migrated pbkdf2 record.
	SchemeLegacy CredentialScheme = "legacy"
	// SchemeLayered marks a record hashed with the current layered scheme.
	SchemeLayered CredentialScheme = "layered"
)

// Credential is the tagged password material of a user record. Layered
// records carry only Blob; legacy records carry only LegacySalt/LegacyHash.
// The engine rewrites a legacy record to layered on its first successful
// login.
type Credential struct {
	Scheme CredentialScheme `json:"scheme"`

	// Blob is the opaque layered-hash output of password.Cipher.
	Blob string `json:"blob,omitempty"`

	// LegacySalt and LegacyHash are the hex-encoded pbkdf2 inputs of the
	// retired scheme.
	LegacySalt string `json:"legacySalt,omitempty"`
	LegacyHash string `json:"legacyHash,omitempty"`
}

// User is a credential record. Records are created at registration, mutated
// by password change/reset and by credential migration, and never deleted
// by this core.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Credential Credential `json:"credential"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastLogin  time.Time  `json:"lastLogin,omitzero"`
}

// Session re-exports the session model for callers that only import the
// root package.
type Session = session.Session

// ResetToken re-exports the reset-token model.
type ResetToken = stores.ResetToken

// Claims re-exports the bearer-token claims.
type Claims = token.Claims

// LoginResult is returned by [Engine.Register] and [Engine.Login].
type LoginResult struct {
	User    *User
	Session *Session
}

// ProfanityFilter screens registration names. The engine delegates the
// actual word list to the integrating application.
type ProfanityFilter interface {
	IsProfane(s string) bool
}

// RateLimitPolicy names one of the engine's configured rate-limit budgets.
type RateLimitPolicy string

const (
	// PolicyLogin guards credential checks (default 5 per 15 minutes).
	PolicyLogin RateLimitPolicy = "login"
	// PolicyMutation guards state-changing requests (default 30 per 15 minutes).
	PolicyMutation RateLimitPolicy = "mutation"
	// PolicyAPI guards generic reads (default 100 per 15 minutes).
	PolicyAPI RateLimitPolicy = "api"
)
