package credlock

import (
	"context"
	"fmt"
	"time"
)

// IssueToken mints a dual-signed bearer token for the user.
func (e *Engine) IssueToken(ctx context.Context, userID string) (string, error) {
	if e == nil || e.tokenIssuer == nil {
		return "", ErrEngineNotReady
	}

	user, err := e.getUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUnauthorized
	}

	wire, err := e.tokenIssuer.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, user.ID, "", nil, nil)
	return wire, nil
}

// VerifyToken validates a wire token and returns its claims. All failure
// modes collapse to [ErrTokenInvalid]. Claims accepted through the legacy
// verification path carry LegacyFormat=true so callers can re-issue.
func (e *Engine) VerifyToken(ctx context.Context, wire string) (*Claims, error) {
	if e == nil || e.tokenVerify == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.tokenVerify.Verify(wire)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		e.emitAudit(ctx, auditEventTokenInvalid, false, "", "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	if claims.LegacyFormat {
		e.metricInc(MetricTokenLegacyAccepted)
		e.emitAudit(ctx, auditEventTokenLegacyAccepted, true, claims.UserID, "", nil, nil)
	} else {
		e.metricInc(MetricTokenVerified)
	}
	return claims, nil
}
