package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName       = "session_state"
	TrustedDeviceCookieName = "trusted_device"
)

// CookieConfig holds cookie security settings shared by all auth cookies.
type CookieConfig struct {
	Secure bool // HTTPS only; off in development
}

// SetSessionCookie writes the signed session-state token.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session-state cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetTrustedDeviceCookie writes the opaque device token. Only its hash is
// stored server-side.
func SetTrustedDeviceCookie(w http.ResponseWriter, token string, maxAge time.Duration, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     TrustedDeviceCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTrustedDeviceCookie removes the device token cookie.
func ClearTrustedDeviceCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     TrustedDeviceCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
