// Package store defines the generic keyed-record store the credlock engine
// persists through, with a JSON-file implementation for single-process
// deployments and a Redis implementation for shared backends.
//
// # Architecture boundaries
//
// This package knows nothing about users, sessions, or tokens — tables hold
// opaque byte payloads. Record shapes and expiry semantics belong to the
// session, reset-token, and engine layers above.
//
// # What this package must NOT do
//
//   - Interpret or validate record contents beyond JSON well-formedness.
//   - Import any other credlock package.
package store
