// Package credlock provides a credential-security engine: layered password
// hashing (pepper, bcrypt, AES-256-GCM), dual-signed encrypted bearer
// tokens with legacy fallback, opaque server-side sessions, one-time
// password-reset tokens, and sliding-window rate limiting over a generic
// keyed-record store.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// credlock is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (User, LoginResult, MetricsSnapshot, etc.). Credential
// primitives live in password/ and token/, storage in store/, and internal
// coordination — rate limiting, reset-token lifecycle — under internal/.
//
// # What this package must NOT do
//
//   - Expose store clients or hash/token encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Distinguish failure causes on the credential path: verification
//     surfaces a single generic error regardless of whether the account
//     existed.
//
// # Performance contract
//
// VerifyToken is the hot path. It performs no store round-trips; Login and
// Register pay one bcrypt hash each, bounded by the configured cost.
//
// # Known trade-offs
//
// Session tokens are stored server-side in plaintext, so a store leak makes
// live sessions immediately usable. Storing only a hash of the token and
// comparing by hash is the known hardening; it is not applied here because
// it would break token lookup for existing deployments.
//
// Token signing uses two static symmetric secrets configured in the same
// environment. Whether that beats one sufficiently strong secret is a
// deployment policy question; both secrets are validated to differ, which
// is the only part Config can enforce.
package credlock
