package store

import (
	"context"
	"errors"
)

// Logical table names used by the credlock engine.
const (
	TableUsers       = "users"
	TableSessions    = "sessions"
	TableResetTokens = "password-reset-tokens"
)

// ErrNotFound is returned by [Store.Get] when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable wraps infrastructure failures of a backing store.
var ErrUnavailable = errors.New("record store unavailable")

// Store is a generic keyed-record store over named logical tables. Values
// are opaque byte payloads; the engine layers JSON records on top.
//
// Implementations must make Put/Delete atomic per key. FileStore serializes
// whole-table writes under a per-table lock; RedisStore relies on per-key
// upserts.
type Store interface {
	// Get returns the value for key, or [ErrNotFound].
	Get(ctx context.Context, table, key string) ([]byte, error)

	// Put creates or replaces the value for key.
	Put(ctx context.Context, table, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, table, key string) error

	// Scan calls fn for every record in table, in unspecified order.
	// A non-nil error from fn stops the scan and is returned unchanged.
	Scan(ctx context.Context, table string, fn func(key string, value []byte) error) error
}
