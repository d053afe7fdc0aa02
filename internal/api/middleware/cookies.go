package middleware

import (
	"net/http"
	"time"

	"github.com/pantrylink/foodbank-api/internal/core/service"
)

// RefreshCookieName carries the refresh token, scoped to the refresh route
// so it never rides along on ordinary API traffic.
const RefreshCookieName = "refresh_token"

// CSRFCookieName is the double-submit half of the anti-forgery check.
const CSRFCookieName = "csrf_token"

// CookieConfig fixes the attributes session cookies are set with. Clearing
// reuses the same attributes: a clear whose path or SameSite differs from
// the original set silently leaves the cookie in place.
type CookieConfig struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func DefaultCookieConfig(secure bool) CookieConfig {
	return CookieConfig{Path: "/", Secure: secure, SameSite: http.SameSiteLaxMode}
}

// SessionCookie builds the session-token cookie.
func (cc CookieConfig) SessionCookie(token string, expiry time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    token,
		Path:     cc.Path,
		Expires:  expiry,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: cc.SameSite,
	}
}

// RefreshCookie builds the refresh-token cookie, scoped to refreshPath.
func (cc CookieConfig) RefreshCookie(token string, expiry time.Time, refreshPath string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshPath,
		Expires:  expiry,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: cc.SameSite,
	}
}

// CSRFCookie builds the double-submit cookie.
func (cc CookieConfig) CSRFCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     cc.Path,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: cc.SameSite,
	}
}

// ClearSessionCookie expires the session cookie with attributes matching how
// it was set.
func (cc CookieConfig) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    "",
		Path:     cc.Path,
		MaxAge:   -1,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: cc.SameSite,
	}
}

// ClearRefreshCookie expires the refresh cookie on its own path.
func (cc CookieConfig) ClearRefreshCookie(refreshPath string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshPath,
		MaxAge:   -1,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: cc.SameSite,
	}
}
