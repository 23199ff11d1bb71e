// Package middleware exposes HTTP adapters for the credlock engine: token
// and admin guards, per-policy rate limiting, and the cookie helpers used
// by both.
//
// # Guards
//
//   - [TokenGuard] — bearer-token authorization with transparent re-issue
//     of tokens accepted through the legacy verification path.
//   - [AdminGuard] — session-cookie authorization restricted to admins.
//   - [RateLimit] — per-IP policy enforcement with X-RateLimit headers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// the Engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Touch the record store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine calls.
package middleware
