package internaldefs

import (
	credlock "github.com/credlock/credlock"
)

// CounterDef binds one engine counter to its stable external name.
type CounterDef struct {
	ID   credlock.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its stable external name.
type HistogramDef struct {
	ID   credlock.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: credlock.MetricRegisterSuccess, Name: "credlock_register_success_total", Help: "Completed registrations."},
	{ID: credlock.MetricRegisterFailure, Name: "credlock_register_failure_total", Help: "Registrations rejected by validation."},
	{ID: credlock.MetricRegisterDuplicate, Name: "credlock_register_duplicate_total", Help: "Registrations rejected as duplicate email."},
	{ID: credlock.MetricLoginSuccess, Name: "credlock_login_success_total", Help: "Successful login attempts."},
	{ID: credlock.MetricLoginFailure, Name: "credlock_login_failure_total", Help: "Failed login attempts."},
	{ID: credlock.MetricLoginRateLimited, Name: "credlock_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: credlock.MetricLogout, Name: "credlock_logout_total", Help: "Explicit session invalidations."},
	{ID: credlock.MetricSessionCreated, Name: "credlock_session_created_total", Help: "Created sessions."},
	{ID: credlock.MetricSessionExpired, Name: "credlock_session_expired_total", Help: "Sessions removed on read after expiry."},
	{ID: credlock.MetricTokenIssued, Name: "credlock_token_issued_total", Help: "Issued bearer tokens."},
	{ID: credlock.MetricTokenVerified, Name: "credlock_token_verified_total", Help: "Tokens accepted in the current format."},
	{ID: credlock.MetricTokenLegacyAccepted, Name: "credlock_token_legacy_accepted_total", Help: "Tokens accepted through the legacy verification path."},
	{ID: credlock.MetricTokenInvalid, Name: "credlock_token_invalid_total", Help: "Rejected tokens."},
	{ID: credlock.MetricCredentialMigrated, Name: "credlock_credential_migrated_total", Help: "Legacy credentials upgraded on login."},
	{ID: credlock.MetricCredentialMigrationFailed, Name: "credlock_credential_migration_failed_total", Help: "Credential upgrades that could not be persisted."},
	{ID: credlock.MetricPasswordResetRequest, Name: "credlock_password_reset_request_total", Help: "Password reset requests."},
	{ID: credlock.MetricPasswordResetConfirm, Name: "credlock_password_reset_confirm_total", Help: "Completed password resets."},
	{ID: credlock.MetricPasswordResetFailure, Name: "credlock_password_reset_failure_total", Help: "Rejected password reset confirmations."},
	{ID: credlock.MetricRateLimitHit, Name: "credlock_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

var HistogramDefs = []HistogramDef{
	{ID: credlock.MetricVerifyLatency, Name: "credlock_verify_latency_seconds", Help: "Token verification latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds instrument-name-safe forms of the bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form the
// Prometheus exposition format requires.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
