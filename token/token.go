package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/credlock/credlock/internal"
	"github.com/golang-jwt/jwt/v5"
)

// FormatVersion tags the encrypted payload layout. Verification matches the
// version exhaustively; unrecognized values fail closed instead of being
// misparsed as a future format.
const FormatVersion = 1

// DefaultTTL is the bearer-token lifetime. Tokens in this system are
// deliberately long-lived; there is no access/refresh split.
const DefaultTTL = 365 * 24 * time.Hour

const (
	minSecretLength     = 32
	encryptionKeyLength = 32
)

// ErrInvalid is the only error surfaced by [Verifier.Verify]. Expired,
// forged, and malformed tokens are indistinguishable to the caller so a
// failed verification cannot be used as an oracle.
var ErrInvalid = errors.New("invalid token")

// Config carries the signing secrets and claim constants shared by
// [Issuer] and [Verifier].
type Config struct {
	// PrimarySecret signs the inner token (and legacy-format tokens).
	PrimarySecret []byte
	// SecondarySecret signs the outer wrapper.
	SecondarySecret []byte
	// EncryptionKey is the 32-byte AES-256 key sealing the claims payload.
	EncryptionKey []byte

	Issuer   string
	Audience string

	// TTL defaults to [DefaultTTL] when zero.
	TTL time.Duration
}

// Claims is the payload carried inside a verified token.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`

	// Fingerprint is random per issuance so equal claims never produce
	// equal ciphertexts.
	Fingerprint string `json:"fpt"`
	Version     int    `json:"ver"`
	IssuedAt    int64  `json:"iat"`

	// LegacyFormat is true when the token only verified through the legacy
	// single-signed path. Callers are expected to re-issue a new-format
	// token on the next request; Verify itself stays pure.
	LegacyFormat bool `json:"-"`
}

type innerClaims struct {
	Enc string `json:"enc"`
	jwt.RegisteredClaims
}

type outerClaims struct {
	Tkn string `json:"tkn"`
	jwt.RegisteredClaims
}

type legacyClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func validateConfig(cfg Config) (Config, error) {
	if len(cfg.PrimarySecret) < minSecretLength {
		return cfg, errors.New("token primary secret must be at least 32 bytes")
	}
	if len(cfg.SecondarySecret) < minSecretLength {
		return cfg, errors.New("token secondary secret must be at least 32 bytes")
	}
	if len(cfg.EncryptionKey) != encryptionKeyLength {
		return cfg, errors.New("token encryption key must be exactly 32 bytes")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return cfg, errors.New("token issuer and audience must be set")
	}
	if cfg.TTL < 0 {
		return cfg, errors.New("token TTL must be >= 0")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return cfg, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Issuer mints dual-signed encrypted bearer tokens. Construction proceeds
// claims → +fingerprint/version/issuedAt → AES-encrypted → inner-signed
// (primary secret, iss/aud/exp) → outer-signed (secondary secret, exp).
type Issuer struct {
	config Config
	aead   cipher.AEAD
	now    func() time.Time
}

// NewIssuer validates cfg and builds an [Issuer].
func NewIssuer(cfg Config) (*Issuer, error) {
	cfg, err := validateConfig(cfg)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &Issuer{config: cfg, aead: aead, now: time.Now}, nil
}

// Issue returns an opaque wire token carrying the given identity claims.
func (i *Issuer) Issue(userID, email, role string) (string, error) {
	if userID == "" {
		return "", errors.New("token requires a user id")
	}

	fingerprint, err := internal.NewFingerprint()
	if err != nil {
		return "", err
	}

	now := i.now()
	payload := Claims{
		UserID:      userID,
		Email:       email,
		Role:        role,
		Fingerprint: fingerprint,
		Version:     FormatVersion,
		IssuedAt:    now.Unix(),
	}
	plain, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, i.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := i.aead.Seal(nonce, nonce, plain, nil)

	expiry := jwt.NewNumericDate(now.Add(i.config.TTL))
	issuedAt := jwt.NewNumericDate(now)

	inner := jwt.NewWithClaims(jwt.SigningMethodHS256, innerClaims{
		Enc: base64.RawURLEncoding.EncodeToString(sealed),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			ExpiresAt: expiry,
			IssuedAt:  issuedAt,
		},
	})
	innerSigned, err := inner.SignedString(i.config.PrimarySecret)
	if err != nil {
		return "", err
	}

	outer := jwt.NewWithClaims(jwt.SigningMethodHS256, outerClaims{
		Tkn: innerSigned,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: expiry,
			IssuedAt:  issuedAt,
		},
	})
	return outer.SignedString(i.config.SecondarySecret)
}

// Verifier checks wire tokens, reversing each issuance stage and failing
// closed at every step.
type Verifier struct {
	config Config
	aead   cipher.AEAD
}

// NewVerifier validates cfg and builds a [Verifier].
func NewVerifier(cfg Config) (*Verifier, error) {
	cfg, err := validateConfig(cfg)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &Verifier{config: cfg, aead: aead}, nil
}

// Verify attempts the dual-signed path first and falls back to the legacy
// single-signed format for tokens issued before the current scheme existed.
// When both paths fail the result is [ErrInvalid] with no further detail.
func (v *Verifier) Verify(wire string) (*Claims, error) {
	if wire == "" {
		return nil, ErrInvalid
	}

	if claims, ok := v.verifyDual(wire); ok {
		return claims, nil
	}
	if claims, ok := v.verifyLegacy(wire); ok {
		claims.LegacyFormat = true
		return claims, nil
	}
	return nil, ErrInvalid
}

func (v *Verifier) verifyDual(wire string) (*Claims, bool) {
	var outer outerClaims
	if !v.parseSigned(wire, v.config.SecondarySecret, &outer, false) {
		return nil, false
	}
	if outer.Tkn == "" {
		return nil, false
	}

	var inner innerClaims
	if !v.parseSigned(outer.Tkn, v.config.PrimarySecret, &inner, true) {
		return nil, false
	}

	sealed, err := base64.RawURLEncoding.DecodeString(inner.Enc)
	if err != nil || len(sealed) < v.aead.NonceSize() {
		return nil, false
	}
	plain, err := v.aead.Open(nil, sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():], nil)
	if err != nil {
		return nil, false
	}

	var claims Claims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return nil, false
	}
	switch claims.Version {
	case FormatVersion:
	default:
		return nil, false
	}
	if claims.UserID == "" {
		return nil, false
	}
	return &claims, true
}

func (v *Verifier) verifyLegacy(wire string) (*Claims, bool) {
	var legacy legacyClaims
	if !v.parseSigned(wire, v.config.PrimarySecret, &legacy, false) {
		return nil, false
	}
	if legacy.UserID == "" {
		return nil, false
	}

	claims := &Claims{
		UserID: legacy.UserID,
		Email:  legacy.Email,
		Role:   legacy.Role,
	}
	if legacy.IssuedAt != nil {
		claims.IssuedAt = legacy.IssuedAt.Unix()
	}
	return claims, true
}

// parseSigned verifies an HS256 signature and standard time claims. When
// checkIdentity is set, issuer and audience are matched as well; a mismatch
// is treated exactly like a bad signature.
func (v *Verifier) parseSigned(wire string, secret []byte, claims jwt.Claims, checkIdentity bool) bool {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if checkIdentity {
		options = append(options,
			jwt.WithIssuer(v.config.Issuer),
			jwt.WithAudience(v.config.Audience),
		)
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(wire, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	return err == nil && parsed.Valid
}
