// Package rate provides the in-memory sliding-window counter behind the
// engine's login, mutation, and API rate-limit policies.
//
// # Window semantics
//
// One entry per identifier. The first request in a window (or the first
// after the reset time passes) initializes {count: 1, reset: now + window};
// later requests increment unconditionally, even past the limit. Stale
// windows are replaced, never merged.
//
// # What this package must NOT do
//
//   - Hard-code policy constants (those live in the engine Config).
//   - Be imported outside the credlock module.
package rate
