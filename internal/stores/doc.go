// Package stores provides the short-lived record store for the
// password-reset flow.
//
// # Design
//
// Reset tokens are single-use: Create enforces at-most-one-unused-per-user,
// Validate re-checks existence, the used flag, and expiry independently, and
// MarkUsed flips the one-way used bit. Expired records are swept by
// CleanupExpired rather than on read, so an expired-but-unused token stays
// inspectable until the next sweep while never validating.
//
// # What this package must NOT do
//
//   - Generate emails or deliver tokens out of band.
//   - Hash passwords or make authentication decisions — those belong to
//     the Engine.
package stores
