package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/credlock/credlock/internal"
	"github.com/credlock/credlock/store"
)

// DefaultTTL is the session lifetime applied when the store is built with a
// zero TTL.
const DefaultTTL = 7 * 24 * time.Hour

// Session is an opaque-token server-side session. Token is 256 bits of
// hex-encoded randomness; a session is valid iff now < ExpiresAt, checked on
// every read.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store manages the session lifecycle over a keyed-record store. Expiry is
// enforced on read (expired records are deleted as they are found), not by a
// background sweep.
type Store struct {
	records store.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewStore builds a session [Store]. now may be nil, in which case
// [time.Now] is used; tests inject a fake clock through it.
func NewStore(records store.Store, ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{records: records, ttl: ttl, now: now}
}

// Create generates a fresh session for userID and persists it.
func (s *Store) Create(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session requires a user id")
	}

	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, err
	}

	created := s.now()
	sess := &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: created,
		ExpiresAt: created.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.records.Put(ctx, store.TableSessions, token, data); err != nil {
		return nil, err
	}
	return sess, nil
}

// Find resolves a session token. A missing, corrupt, or expired record
// yields (nil, nil); expired and corrupt records are deleted on the way out.
// A non-nil error means the backing store failed, not that the session is
// invalid.
func (s *Store) Find(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	data, err := s.records.Get(ctx, store.TableSessions, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Undecodable session records fail closed.
		if delErr := s.records.Delete(ctx, store.TableSessions, token); delErr != nil {
			return nil, delErr
		}
		return nil, nil
	}

	if !s.now().Before(sess.ExpiresAt) {
		if err := s.records.Delete(ctx, store.TableSessions, token); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &sess, nil
}

// Delete removes a session unconditionally (logout).
func (s *Store) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.records.Delete(ctx, store.TableSessions, token)
}
