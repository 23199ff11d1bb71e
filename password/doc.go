// Package password implements the layered password hash used by credlock and
// constant-time verification of the retired pbkdf2 scheme.
//
// # Layered format
//
// New hashes are built in three stages — SHA-512 pre-hash with a deployment
// pepper, bcrypt with a per-call random salt, and an AES-256-GCM wrap under a
// server-only master key — and encoded as:
//
//	$clv1$base64(nonce || ciphertext)
//
// Output is non-deterministic per call. [Cipher.Verify] reverses the stages
// and converts every failure to false; it never returns an error.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) and record migration are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve credential records — callers supply plaintext and
//     receive opaque blobs.
//   - Import any other credlock package.
//   - Log plaintext passwords or key material.
package password
