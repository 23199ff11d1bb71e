package credlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/credlock/credlock/password"
	"github.com/credlock/credlock/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type blockListFilter struct {
	blocked []string
}

func (f *blockListFilter) IsProfane(s string) bool {
	lower := strings.ToLower(s)
	for _, word := range f.blocked {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Pepper = []byte("unit-test-pepper-0123456789abcdef")
	cfg.Password.MasterKey = []byte("unit-test-master-key-32-bytes-ok")
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Token.PrimarySecret = []byte("unit-test-primary-secret-32-bytes!!")
	cfg.Token.SecondarySecret = []byte("unit-test-secondary-secret-32-bytes")
	cfg.Token.EncryptionKey = []byte("unit-test-token-aes-key-32-bytes")
	// No background reaper in unit tests; expiry is driven by the clock.
	cfg.RateLimit.ReapInterval = 0
	return cfg
}

func newTestEngine(t testing.TB, mutate func(*Builder)) (*Engine, *fakeClock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	builder := New().
		WithConfig(testEngineConfig()).
		WithStore(store.NewRedisStore(client, "test")).
		WithClock(clock.Now).
		WithMetricsEnabled(true)
	if mutate != nil {
		mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, clock
}

func mustRegister(t testing.TB, e *Engine, name, email, pw string) *LoginResult {
	t.Helper()

	result, err := e.Register(context.Background(), name, email, pw)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return result
}

func TestRegisterIssuesSession(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	result := mustRegister(t, engine, "Alice", "alice@example.com", "Passw0rd1")
	if result.User.ID == "" {
		t.Fatal("user has no id")
	}
	if result.User.Role != RoleUser {
		t.Fatalf("role = %q, want %q", result.User.Role, RoleUser)
	}
	if result.User.Credential.Scheme != SchemeLayered {
		t.Fatalf("scheme = %q, want layered", result.User.Credential.Scheme)
	}
	if result.User.Credential.LegacySalt != "" {
		t.Fatal("fresh registration carries a legacy salt")
	}
	if result.Session == nil || result.Session.UserID != result.User.ID {
		t.Fatalf("session = %+v", result.Session)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithProfanityFilter(&blockListFilter{blocked: []string{"badword"}})
	})
	ctx := context.Background()

	cases := []struct {
		name     string
		userName string
		email    string
		password string
		want     error
	}{
		{"empty name", "", "a@x.com", "Passw0rd1", ErrNameRejected},
		{"profane name", "BadWord Jones", "a@x.com", "Passw0rd1", ErrNameRejected},
		{"malformed email", "Alice", "not-an-email", "Passw0rd1", ErrEmailInvalid},
		{"email no tld", "Alice", "a@x", "Passw0rd1", ErrEmailInvalid},
		{"short password", "Alice", "a@x.com", "Pw1", ErrPasswordPolicy},
		{"long password", "Alice", "a@x.com", "Aa1" + strings.Repeat("x", 126), ErrPasswordPolicy},
		{"no upper", "Alice", "a@x.com", "passw0rd1", ErrPasswordPolicy},
		{"no lower", "Alice", "a@x.com", "PASSW0RD1", ErrPasswordPolicy},
		{"no digit", "Alice", "a@x.com", "Passwordx", ErrPasswordPolicy},
	}
	for _, tc := range cases {
		if _, err := engine.Register(ctx, tc.userName, tc.email, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRegisterPasswordPolicyNamesRule(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Register(context.Background(), "Alice", "a@x.com", "Passwordx")
	if err == nil || !strings.Contains(err.Error(), "digit") {
		t.Fatalf("err = %v, want message naming the digit rule", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@example.com", "Passw0rd1")

	// Case-insensitive.
	if _, err := engine.Register(ctx, "Other", "ALICE@Example.COM", "Passw0rd2"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate register err = %v, want ErrDuplicateEmail", err)
	}
}

func TestLoginSuccessAndGenericFailure(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Som", "som@x.com", "Passw0rd1")

	result, err := engine.Login(ctx, "som@x.com", "Passw0rd1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Session == nil {
		t.Fatal("login returned no session")
	}
	if result.User.LastLogin.IsZero() {
		t.Fatal("LastLogin not set")
	}

	// Wrong password and unknown account must be indistinguishable.
	_, wrongPw := engine.Login(ctx, "som@x.com", "wrong")
	_, unknown := engine.Login(ctx, "nobody@x.com", "Passw0rd1")
	if !errors.Is(wrongPw, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("wrongPw = %v, unknown = %v, want ErrInvalidCredentials for both", wrongPw, unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatal("failure messages differ between wrong password and unknown email")
	}
}

func TestLoginRateLimitScenario(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	mustRegister(t, engine, "Som", "som@x.com", "Passw0rd1")

	// A successful login clears the window.
	if _, err := engine.Login(ctx, "som@x.com", "Passw0rd1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// 5 failed attempts are all processed.
	for i := 1; i <= 5; i++ {
		if _, err := engine.Login(ctx, "som@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
	}

	// The 6th is rate-limited with a reset about 15 minutes out.
	_, err := engine.Login(ctx, "som@x.com", "Passw0rd1")
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("6th attempt err = %v, want RateLimitError", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("RateLimitError does not match ErrRateLimited")
	}
	until := rle.ResetTime.Sub(clock.Now())
	if until <= 14*time.Minute || until > 15*time.Minute {
		t.Fatalf("reset in %v, want about 15 minutes", until)
	}

	// After the window passes, logins flow again.
	clock.Advance(15*time.Minute + time.Second)
	if _, err := engine.Login(ctx, "som@x.com", "Passw0rd1"); err != nil {
		t.Fatalf("login after window failed: %v", err)
	}
}

func TestLoginMigratesLegacyCredential(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("rand: %v", err)
	}
	legacy := &User{
		ID:    "legacy-1",
		Name:  "Old Timer",
		Email: "old@x.com",
		Credential: Credential{
			Scheme:     SchemeLegacy,
			LegacySalt: hex.EncodeToString(salt),
			LegacyHash: password.LegacyHash("Passw0rd1", salt),
		},
		Role:      RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := engine.putUser(ctx, legacy); err != nil {
		t.Fatalf("seed legacy user: %v", err)
	}

	if _, err := engine.Login(ctx, "old@x.com", "Passw0rd1"); err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}

	migrated, err := engine.getUserByID(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if migrated.Credential.Scheme != SchemeLayered {
		t.Fatalf("scheme after login = %q, want layered", migrated.Credential.Scheme)
	}
	if migrated.Credential.LegacySalt != "" || migrated.Credential.LegacyHash != "" {
		t.Fatal("legacy material still present after migration")
	}

	// The migrated credential verifies through the layered path.
	if _, err := engine.Login(ctx, "old@x.com", "Passw0rd1"); err != nil {
		t.Fatalf("post-migration login failed: %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCredentialMigrated]; got != 1 {
		t.Fatalf("migrated counter = %d, want 1", got)
	}
}

func TestLoginUnknownSchemeFailsClosed(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	u := &User{
		ID:    "u-odd",
		Name:  "Odd",
		Email: "odd@x.com",
		Credential: Credential{
			Scheme: CredentialScheme("future"),
			Blob:   "whatever",
		},
		Role: RoleUser,
	}
	if err := engine.putUser(ctx, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := engine.Login(ctx, "odd@x.com", "Passw0rd1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown scheme login err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	result := mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	if err := engine.Logout(ctx, result.Session.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	sess, err := engine.FindSession(ctx, result.Session.Token)
	if err != nil {
		t.Fatalf("FindSession failed: %v", err)
	}
	if sess != nil {
		t.Fatal("session survived logout")
	}
}

func TestFindSessionExpiresOnRead(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()

	result := mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")

	clock.Advance(7*24*time.Hour + time.Minute)
	sess, err := engine.FindSession(ctx, result.Session.Token)
	if err != nil {
		t.Fatalf("FindSession failed: %v", err)
	}
	if sess != nil {
		t.Fatal("expired session still resolves")
	}
}

func TestRequireAdmin(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	user := mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	if _, err := engine.RequireAdmin(ctx, user.Session.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin session err = %v, want ErrUnauthorized", err)
	}

	// Promote and retry through a fresh login.
	record, err := engine.getUserByID(ctx, user.User.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	record.Role = RoleAdmin
	if err := engine.putUser(ctx, record); err != nil {
		t.Fatalf("store user: %v", err)
	}

	admin, err := engine.RequireAdmin(ctx, user.Session.Token)
	if err != nil {
		t.Fatalf("RequireAdmin failed: %v", err)
	}
	if admin.ID != user.User.ID {
		t.Fatalf("admin = %+v", admin)
	}

	if _, err := engine.RequireAdmin(ctx, "no-such-session"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown session err = %v, want ErrUnauthorized", err)
	}
}

func TestTokenIssueVerifyThroughEngine(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	user := mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")

	wire, err := engine.IssueToken(ctx, user.User.ID)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := engine.VerifyToken(ctx, wire)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != user.User.ID || claims.Email != "alice@x.com" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := engine.VerifyToken(ctx, wire+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered token err = %v, want ErrTokenInvalid", err)
	}
	if _, err := engine.IssueToken(ctx, "ghost"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("IssueToken for missing user err = %v, want ErrUnauthorized", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")

	tok, err := engine.RequestPasswordReset(ctx, "alice@x.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if tok == nil {
		t.Fatal("no token for known account")
	}

	if err := engine.ConfirmPasswordReset(ctx, tok.Token, "NewPassw0rd"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	// Old password dead, new password live.
	if _, err := engine.Login(ctx, "alice@x.com", "Passw0rd1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(ctx, "alice@x.com", "NewPassw0rd"); err != nil {
		t.Fatalf("new password login failed: %v", err)
	}

	// Replay is rejected.
	if err := engine.ConfirmPasswordReset(ctx, tok.Token, "Anoth3rPass"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("replay err = %v, want ErrResetTokenInvalid", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	tok, err := engine.RequestPasswordReset(context.Background(), "ghost@x.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if tok != nil {
		t.Fatalf("token issued for unknown account: %+v", tok)
	}
}

func TestPasswordResetExpiredToken(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	tok, err := engine.RequestPasswordReset(ctx, "alice@x.com")
	if err != nil || tok == nil {
		t.Fatalf("RequestPasswordReset = %v, %v", tok, err)
	}

	clock.Advance(time.Hour + time.Second)
	if err := engine.ConfirmPasswordReset(ctx, tok.Token, "NewPassw0rd"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expired token err = %v, want ErrResetTokenInvalid", err)
	}
}

func TestPasswordResetEnforcesPolicy(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	tok, err := engine.RequestPasswordReset(ctx, "alice@x.com")
	if err != nil || tok == nil {
		t.Fatalf("RequestPasswordReset = %v, %v", tok, err)
	}

	if err := engine.ConfirmPasswordReset(ctx, tok.Token, "weak"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak password err = %v, want ErrPasswordPolicy", err)
	}

	// Policy rejection must not burn the token.
	if err := engine.ConfirmPasswordReset(ctx, tok.Token, "NewPassw0rd"); err != nil {
		t.Fatalf("confirm after policy rejection failed: %v", err)
	}
}

func TestCheckRateLimitPolicies(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := engine.CheckRateLimit(ctx, PolicyMutation, "client-1"); err != nil {
			t.Fatalf("mutation check %d failed: %v", i, err)
		}
	}
	if _, err := engine.CheckRateLimit(ctx, PolicyMutation, "client-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("31st mutation err = %v, want ErrRateLimited", err)
	}

	// Policies keep separate windows for the same identifier.
	if _, err := engine.CheckRateLimit(ctx, PolicyAPI, "client-1"); err != nil {
		t.Fatalf("api check failed after mutation limit: %v", err)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(64)
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	if _, err := engine.Login(ctx, "alice@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	engine.Close()

	types := map[string]bool{}
	for {
		select {
		case ev := <-sink.Events():
			types[ev.EventType] = true
			continue
		default:
		}
		break
	}
	if !types[auditEventRegisterSuccess] {
		t.Fatalf("no register_success event, saw %v", types)
	}
	if !types[auditEventLoginFailure] {
		t.Fatalf("no login_failure event, saw %v", types)
	}
}

func TestMetricsSnapshotCounts(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, engine, "Alice", "alice@x.com", "Passw0rd1")
	if _, err := engine.Login(ctx, "alice@x.com", "Passw0rd1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("register counter = %d", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success counter = %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter = %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 2 {
		t.Fatalf("session counter = %d, want 2", snap.Counters[MetricSessionCreated])
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := New().WithConfig(testEngineConfig()).WithStore(store.NewRedisStore(client, "test"))
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build succeeded")
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(testEngineConfig()).Build(); err == nil {
		t.Fatal("Build without a store succeeded")
	}
}
