package credlock

import (
	"bytes"
	"errors"
	"time"

	"github.com/credlock/credlock/password"
	"github.com/credlock/credlock/token"
)

// Config defines the engine's tunables and secrets.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Password      PasswordConfig
	Token         TokenConfig
	Session       SessionConfig
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	Account       AccountConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the layered-hash secrets. Both values are fatal to
// omit: [Config.Validate] fails rather than running with weak defaults.
type PasswordConfig struct {
	// Pepper is the deployment-wide secret mixed into every password
	// before hashing. At least 16 bytes.
	Pepper []byte
	// MasterKey is the 32-byte AES-256 key wrapping stored hashes.
	MasterKey []byte
	// BcryptCost defaults to password.DefaultCost (12) when zero.
	BcryptCost int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the dual-signing secrets and claim constants.
type TokenConfig struct {
	// PrimarySecret signs the inner token and verifies legacy tokens.
	PrimarySecret []byte
	// SecondarySecret signs the outer wrapper.
	SecondarySecret []byte
	// EncryptionKey is the 32-byte AES key sealing token payloads.
	EncryptionKey []byte

	Issuer   string
	Audience string

	// TTL defaults to token.DefaultTTL (365 days) when zero. Long-lived
	// tokens are a structural choice of this system; there is no
	// access/refresh split.
	TTL time.Duration
}

/*
====================================
SESSION / RESET CONFIG
====================================
*/

// SessionConfig controls opaque-token sessions.
type SessionConfig struct {
	// TTL defaults to session.DefaultTTL (7 days) when zero.
	TTL time.Duration
}

// PasswordResetConfig controls one-time reset tokens.
type PasswordResetConfig struct {
	// TTL defaults to stores.DefaultResetTTL (1 hour) when zero.
	TTL time.Duration
	// CleanupInterval drives the periodic expired-token sweep. Zero
	// disables the background sweep; CleanupExpired can still be driven
	// by the caller.
	CleanupInterval time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines the three named policies sharing the window
// counter, plus the reaper cadence bounding the counter map.
type RateLimitConfig struct {
	LoginWindow time.Duration
	LoginMax    int

	MutationWindow time.Duration
	MutationMax    int

	APIWindow time.Duration
	APIMax    int

	// ReapInterval drives the background removal of expired windows.
	// Zero disables the reaper.
	ReapInterval time.Duration
}

/*
====================================
ACCOUNT / AUDIT / METRICS CONFIG
====================================
*/

// AccountConfig controls registration behavior.
type AccountConfig struct {
	// DefaultRole is assigned to self-registered accounts.
	DefaultRole Role
}

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Secrets are left empty
// on purpose; [Config.Validate] refuses to run without them.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			BcryptCost: password.DefaultCost,
		},
		Token: TokenConfig{
			Issuer:   "credlock",
			Audience: "credlock-clients",
			TTL:      token.DefaultTTL,
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TTL:             time.Hour,
			CleanupInterval: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			LoginWindow:    15 * time.Minute,
			LoginMax:       5,
			MutationWindow: 15 * time.Minute,
			MutationMax:    30,
			APIWindow:      15 * time.Minute,
			APIMax:         100,
			ReapInterval:   5 * time.Minute,
		},
		Account: AccountConfig{
			DefaultRole: RoleUser,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Password.Pepper = cloneBytes(cfg.Password.Pepper)
	out.Password.MasterKey = cloneBytes(cfg.Password.MasterKey)
	out.Token.PrimarySecret = cloneBytes(cfg.Token.PrimarySecret)
	out.Token.SecondarySecret = cloneBytes(cfg.Token.SecondarySecret)
	out.Token.EncryptionKey = cloneBytes(cfg.Token.EncryptionKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations that would run with missing or weak
// secrets. This is the only fatal condition in the core: everything else
// degrades to pass/fail results at call time.
func (c *Config) Validate() error {
	// Password secrets: delegated checks live in password.NewCipher, but
	// catching them here fails startup with a config error instead of a
	// build error.
	if len(c.Password.Pepper) < 16 {
		return errors.New("Password Pepper must be at least 16 bytes")
	}
	if len(c.Password.MasterKey) != 32 {
		return errors.New("Password MasterKey must be exactly 32 bytes")
	}

	// Token secrets.
	if len(c.Token.PrimarySecret) < 32 {
		return errors.New("Token PrimarySecret must be at least 32 bytes")
	}
	if len(c.Token.SecondarySecret) < 32 {
		return errors.New("Token SecondarySecret must be at least 32 bytes")
	}
	if bytes.Equal(c.Token.PrimarySecret, c.Token.SecondarySecret) {
		return errors.New("Token PrimarySecret and SecondarySecret must differ")
	}
	if len(c.Token.EncryptionKey) != 32 {
		return errors.New("Token EncryptionKey must be exactly 32 bytes")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("Token Issuer and Audience must be set")
	}
	if c.Token.TTL < 0 {
		return errors.New("Token TTL must be >= 0")
	}

	// Lifetimes.
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if c.PasswordReset.TTL < 0 {
		return errors.New("PasswordReset TTL must be >= 0")
	}
	if c.PasswordReset.CleanupInterval < 0 {
		return errors.New("PasswordReset CleanupInterval must be >= 0")
	}

	// Rate limits.
	if c.RateLimit.LoginWindow <= 0 || c.RateLimit.LoginMax <= 0 {
		return errors.New("RateLimit login policy must have window and max > 0")
	}
	if c.RateLimit.MutationWindow <= 0 || c.RateLimit.MutationMax <= 0 {
		return errors.New("RateLimit mutation policy must have window and max > 0")
	}
	if c.RateLimit.APIWindow <= 0 || c.RateLimit.APIMax <= 0 {
		return errors.New("RateLimit api policy must have window and max > 0")
	}
	if c.RateLimit.ReapInterval < 0 {
		return errors.New("RateLimit ReapInterval must be >= 0")
	}

	// Account.
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must be set")
	}

	return nil
}
