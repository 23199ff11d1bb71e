package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

const (
	sessionTokenSize = 32
	resetTokenSize   = 32
	fingerprintSize  = 32
)

// NewSessionToken returns a fresh 256-bit session token, hex encoded.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// NewResetToken returns a fresh 256-bit password-reset token, hex encoded.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// NewFingerprint returns a random 256-bit value, base64url encoded.
// Embedded in token payloads so every issued token encrypts differently.
func NewFingerprint() (string, error) {
	var raw [fingerprintSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
