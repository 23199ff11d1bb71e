// Package internal holds shared helpers for the credlock engine that must
// not appear on the public API: random token generation and the keyed-record
// store plumbing used by the session and reset-token stores.
package internal
