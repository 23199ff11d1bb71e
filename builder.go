package credlock

import (
	"errors"
	"time"

	"github.com/credlock/credlock/internal/rate"
	"github.com/credlock/credlock/internal/stores"
	"github.com/credlock/credlock/password"
	"github.com/credlock/credlock/session"
	"github.com/credlock/credlock/store"
	"github.com/credlock/credlock/token"
)

// Builder assembles an [Engine]. A Builder is single-use: Build returns an
// error on the second call.
type Builder struct {
	config    Config
	records   store.Store
	profanity ProfanityFilter
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the keyed-record backend holding users, sessions, and
// reset tokens. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.records = s
	return b
}

// WithProfanityFilter sets the name filter consulted at registration. Nil
// disables the check.
func (b *Builder) WithProfanityFilter(f ProfanityFilter) *Builder {
	b.profanity = f
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithClock overrides the time source for sessions, reset tokens, and the
// rate limiter. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The background
// rate-limit reaper and reset-token sweep start here; Engine.Close stops
// them.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.records == nil {
		return nil, errors.New("record store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cipher, err := password.NewCipher(password.Config{
		Pepper:    cfg.Password.Pepper,
		MasterKey: cfg.Password.MasterKey,
		Cost:      cfg.Password.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	tokenCfg := token.Config{
		PrimarySecret:   cfg.Token.PrimarySecret,
		SecondarySecret: cfg.Token.SecondarySecret,
		EncryptionKey:   cfg.Token.EncryptionKey,
		Issuer:          cfg.Token.Issuer,
		Audience:        cfg.Token.Audience,
		TTL:             cfg.Token.TTL,
	}
	issuer, err := token.NewIssuer(tokenCfg)
	if err != nil {
		return nil, err
	}
	verifier, err := token.NewVerifier(tokenCfg)
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	limiter := rate.New(clock)
	if cfg.RateLimit.ReapInterval > 0 {
		limiter.Start(cfg.RateLimit.ReapInterval)
	}

	e := &Engine{
		config:       cfg,
		records:      b.records,
		sessionStore: session.NewStore(b.records, cfg.Session.TTL, clock),
		resetStore:   stores.NewResetTokenStore(b.records, cfg.PasswordReset.TTL, clock),
		rateLimiter:  limiter,
		cipher:       cipher,
		tokenIssuer:  issuer,
		tokenVerify:  verifier,
		profanity:    b.profanity,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		clock:        clock,
	}

	if cfg.PasswordReset.CleanupInterval > 0 {
		e.startResetSweep(cfg.PasswordReset.CleanupInterval)
	}

	b.built = true
	return e, nil
}
