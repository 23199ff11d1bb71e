// Package session provides opaque-token session persistence over the
// credlock record store, with expire-on-read semantics.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does not
// interpret bearer tokens, look up users, or enforce authentication policy —
// those responsibilities belong to the Engine.
//
// Session tokens are stored server-side in plaintext; see the package
// documentation of credlock for the trade-off discussion.
package session
