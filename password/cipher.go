package password

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// blobVersionV1 tags the current layered-hash wire format:
	// $clv1$base64(nonce || AES-256-GCM(bcrypt(SHA-512(password || pepper)))).
	blobVersionV1 = "clv1"

	// DefaultCost is the bcrypt work factor for new hashes.
	DefaultCost = 12

	minPepperLength = 16
	masterKeyLength = 32

	// MaxPasswordLength bounds input so bcrypt cost stays predictable.
	MaxPasswordLength = 128
)

// Config carries the deployment-wide secrets for the layered hash scheme.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	// Pepper is mixed into every password before hashing. Distinct from a
	// per-record salt: it never leaves the process and is not stored.
	Pepper []byte

	// MasterKey is the 32-byte AES-256 key wrapping every stored hash.
	// Rotatable independently of the credential records it protects.
	MasterKey []byte

	// Cost is the bcrypt work factor. Zero means [DefaultCost].
	Cost int
}

// Cipher produces and verifies layered password hashes. Each layer defends
// against a different compromise: a DB-only leak is defeated by the pepper,
// a DB+pepper leak by the bcrypt cost, and a full DB dump without the master
// key by the AES wrap.
type Cipher struct {
	pepper []byte
	aead   cipher.AEAD
	cost   int
}

// NewCipher validates cfg and builds a [Cipher]. Secrets that are missing,
// too short, or degenerate (a repeated single byte) are rejected so a
// misconfigured deployment fails at startup, not at first login.
func NewCipher(cfg Config) (*Cipher, error) {
	if len(cfg.Pepper) < minPepperLength {
		return nil, errors.New("password pepper must be at least 16 bytes")
	}
	if degenerateSecret(cfg.Pepper) {
		return nil, errors.New("password pepper is a repeated single byte")
	}
	if len(cfg.MasterKey) != masterKeyLength {
		return nil, errors.New("password master key must be exactly 32 bytes")
	}
	if degenerateSecret(cfg.MasterKey) {
		return nil, errors.New("password master key is a repeated single byte")
	}

	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	block, err := aes.NewCipher(cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{
		pepper: append([]byte(nil), cfg.Pepper...),
		aead:   aead,
		cost:   cost,
	}, nil
}

// Hash produces a layered hash blob for password. Output is non-deterministic:
// bcrypt contributes a random salt and the AES wrap a random nonce, so two
// calls with the same password produce different blobs.
func (c *Cipher) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password must not be empty")
	}
	if len(password) > MaxPasswordLength {
		return "", errors.New("password exceeds maximum length")
	}

	bcrypted, err := bcrypt.GenerateFromPassword(c.prehash(password), c.cost)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, bcrypted, nil)

	return "$" + blobVersionV1 + "$" + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Verify reports whether password matches the layered blob. Every failure
// mode — malformed blob, unknown version, decryption failure, bcrypt
// mismatch — resolves to false. Verify never returns an error and never
// mutates stored state.
func (c *Cipher) Verify(password, blob string) bool {
	if password == "" || len(password) > MaxPasswordLength {
		return false
	}

	sealed, ok := c.decodeBlob(blob)
	if !ok {
		return false
	}
	if len(sealed) < c.aead.NonceSize() {
		return false
	}

	bcrypted, err := c.aead.Open(nil, sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():], nil)
	if err != nil {
		return false
	}

	return bcrypt.CompareHashAndPassword(bcrypted, c.prehash(password)) == nil
}

// prehash normalizes password length ahead of bcrypt's 72-byte input cap and
// binds in the deployment pepper. The raw 64-byte digest is fed to bcrypt
// directly; re-encoding it would push past the cap and silently truncate.
func (c *Cipher) prehash(password string) []byte {
	buf := make([]byte, 0, len(password)+len(c.pepper))
	buf = append(buf, password...)
	buf = append(buf, c.pepper...)
	sum := sha512.Sum512(buf)
	return sum[:]
}

func (c *Cipher) decodeBlob(blob string) ([]byte, bool) {
	parts := strings.Split(blob, "$")
	if len(parts) != 3 || parts[0] != "" {
		return nil, false
	}
	// Unknown versions fail closed rather than misparse.
	if parts[1] != blobVersionV1 {
		return nil, false
	}

	sealed, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, false
	}
	return sealed, true
}

func degenerateSecret(secret []byte) bool {
	for _, b := range secret {
		if b != secret[0] {
			return false
		}
	}
	return true
}
