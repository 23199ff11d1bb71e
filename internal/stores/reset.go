package stores

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/credlock/credlock/internal"
	"github.com/credlock/credlock/store"
)

// DefaultResetTTL is the reset-token lifetime applied when the store is
// built with a zero TTL.
const DefaultResetTTL = time.Hour

// ResetToken is a one-time password-reset credential. Used transitions
// false→true exactly once and never back.
type ResetToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

// ResetTokenStore manages reset-token lifecycle over a keyed-record store.
// At most one unused token exists per user: Create removes the user's prior
// unused tokens before persisting a fresh one.
type ResetTokenStore struct {
	records store.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewResetTokenStore builds a [ResetTokenStore]. now may be nil ([time.Now]).
func NewResetTokenStore(records store.Store, ttl time.Duration, now func() time.Time) *ResetTokenStore {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ResetTokenStore{records: records, ttl: ttl, now: now}
}

// Create invalidates every prior unused token of userID, then persists a
// fresh one-hour token.
func (s *ResetTokenStore) Create(ctx context.Context, userID, email string) (*ResetToken, error) {
	if userID == "" {
		return nil, errors.New("reset token requires a user id")
	}

	var stale []string
	err := s.records.Scan(ctx, store.TableResetTokens, func(key string, value []byte) error {
		var rec ResetToken
		if err := json.Unmarshal(value, &rec); err != nil {
			// Undecodable records can never validate; sweep them too.
			stale = append(stale, key)
			return nil
		}
		if rec.UserID == userID && !rec.Used {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, key := range stale {
		if err := s.records.Delete(ctx, store.TableResetTokens, key); err != nil {
			return nil, err
		}
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return nil, err
	}

	created := s.now()
	rec := &ResetToken{
		Token:     token,
		UserID:    userID,
		Email:     email,
		CreatedAt: created,
		ExpiresAt: created.Add(s.ttl),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.records.Put(ctx, store.TableResetTokens, token, data); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate returns the record only when it exists, is unused, and has not
// expired. The three conditions are independent; any failing one yields
// (nil, nil). A non-nil error means the backing store failed.
func (s *ResetTokenStore) Validate(ctx context.Context, token string) (*ResetToken, error) {
	rec, err := s.get(ctx, token)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Used {
		return nil, nil
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, nil
	}
	return rec, nil
}

// MarkUsed flips Used to true. It reports whether the token exists; marking
// an already-used token again is a no-op that still reports true.
func (s *ResetTokenStore) MarkUsed(ctx context.Context, token string) (bool, error) {
	rec, err := s.get(ctx, token)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if rec.Used {
		return true, nil
	}

	rec.Used = true
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	if err := s.records.Put(ctx, store.TableResetTokens, token, data); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired removes every record past its expiry, used or not, and
// returns the number removed.
func (s *ResetTokenStore) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()

	var expired []string
	err := s.records.Scan(ctx, store.TableResetTokens, func(key string, value []byte) error {
		var rec ResetToken
		if err := json.Unmarshal(value, &rec); err != nil {
			expired = append(expired, key)
			return nil
		}
		if !now.Before(rec.ExpiresAt) {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, key := range expired {
		if err := s.records.Delete(ctx, store.TableResetTokens, key); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

func (s *ResetTokenStore) get(ctx context.Context, token string) (*ResetToken, error) {
	if token == "" {
		return nil, nil
	}

	data, err := s.records.Get(ctx, store.TableResetTokens, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rec ResetToken
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}
