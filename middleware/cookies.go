package middleware

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the opaque session token.
	SessionCookieName = "session_token"
	// TokenCookieName carries the dual-signed bearer token.
	TokenCookieName = "auth_token"

	sessionCookieMaxAge = int(7 * 24 * time.Hour / time.Second)
)

// SetSessionCookie writes the session token as an HttpOnly, SameSite=Strict
// cookie with a 7-day Max-Age. Secure is set only in production so local
// plain-HTTP development still works.
func SetSessionCookie(w http.ResponseWriter, token string, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetTokenCookie writes the bearer token under the same cookie attributes
// as the session cookie.
func SetTokenCookie(w http.ResponseWriter, wire string, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    wire,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})
}
