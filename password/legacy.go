package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Parameters of the retired pbkdf2 scheme. Kept only so existing records can
// be verified and transparently migrated to the layered scheme on their next
// successful login; no new legacy hashes are ever produced.
const (
	LegacyIterations = 600000
	LegacyKeyLength  = 32
)

// VerifyLegacy reports whether password matches a legacy pbkdf2 record.
// saltHex and hashHex are the hex-encoded per-record salt and derived key.
// Malformed input resolves to false; the comparison is constant time.
func VerifyLegacy(password, saltHex, hashHex string) bool {
	if password == "" || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != LegacyKeyLength {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, LegacyIterations, LegacyKeyLength, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// LegacyHash derives a pbkdf2 hash for password under the given salt. Exists
// for test fixtures and data backfills only; the engine never writes legacy
// records.
func LegacyHash(password string, salt []byte) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(password), salt, LegacyIterations, LegacyKeyLength, sha256.New))
}
