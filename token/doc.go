// Package token issues and verifies the dual-signed encrypted bearer tokens
// used for long-lived API authentication.
//
// A wire token is two nested HS256 JWTs: the outer is signed with the
// secondary secret and carries the inner token as its sole claim; the inner
// is signed with the primary secret, asserts issuer/audience/expiry, and
// carries the AES-256-GCM-encrypted identity claims. Verification reverses
// each stage and fails closed — expired, forged, and malformed tokens all
// surface as the single [ErrInvalid].
//
// Tokens issued under the retired single-signed plaintext format still
// verify through a fallback path; such results are flagged LegacyFormat so
// callers can transparently re-issue.
package token
