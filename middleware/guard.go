package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	credlock "github.com/credlock/credlock"
)

type claimsContextKey struct{}
type userContextKey struct{}

// ClaimsFromContext returns the verified token claims injected by
// [TokenGuard].
func ClaimsFromContext(ctx context.Context) (*credlock.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*credlock.Claims)
	return claims, ok
}

// UserFromContext returns the admin user injected by [AdminGuard].
func UserFromContext(ctx context.Context) (*credlock.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*credlock.User)
	return user, ok
}

// TokenGuard authorizes requests carrying a bearer token, read from the
// auth_token cookie or the Authorization header. When the token verified
// through the legacy path, a fresh current-format token is re-issued and
// set on the response transparently.
func TokenGuard(engine *credlock.Engine, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			wire, ok := requestToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.VerifyToken(r.Context(), wire)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if claims.LegacyFormat {
				if fresh, err := engine.IssueToken(r.Context(), claims.UserID); err == nil {
					SetTokenCookie(w, fresh, production)
				}
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminGuard authorizes requests whose session cookie resolves to an admin
// account.
func AdminGuard(engine *credlock.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := engine.RequireAdmin(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit enforces the named policy per client IP and surfaces the
// standard X-RateLimit headers on every response.
func RateLimit(engine *credlock.Engine, policy credlock.RateLimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := credlock.WithClientIP(r.Context(), clientIP(r))
			res, err := engine.CheckRateLimit(ctx, policy, "")

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.ResetTime.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
			}

			if err != nil {
				var rle *credlock.RateLimitError
				if errors.As(err, &rle) {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// clientIP trusts the leftmost X-Forwarded-For hop when present, falling
// back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
