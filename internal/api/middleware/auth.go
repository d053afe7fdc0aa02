package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/api/metrics"
	"github.com/pantrylink/foodbank-api/internal/core/domain"
	"github.com/pantrylink/foodbank-api/internal/core/ports"
)

const (
	principalKey  = "auth_principal"
	authResultKey = "auth_result"
)

// Response messages on the 401 path. Clients key UI behaviour off these
// exact strings.
const (
	MsgMissingToken = "Missing token"
	MsgInvalidToken = "Invalid token"
	MsgTokenExpired = "Token expired"
)

// RequireAuth authenticates every request and rejects anything short of a
// resolved principal. An expired token additionally clears the session
// cookie so the browser stops replaying it.
func RequireAuth(auth ports.Authenticator, cookies CookieConfig) echo.MiddlewareFunc {
	return authMiddleware(auth, cookies, true)
}

// OptionalAuth behaves like RequireAuth except that an absent credential
// continues anonymously. The maintenance gate runs behind this mode so it
// can answer anonymous callers; RequireAuth stacked after it enforces the
// principal without authenticating a second time.
func OptionalAuth(auth ports.Authenticator, cookies CookieConfig) echo.MiddlewareFunc {
	return authMiddleware(auth, cookies, false)
}

func authMiddleware(auth ports.Authenticator, cookies CookieConfig, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// One authentication per request: a stacked auth middleware
			// reuses the result, so the store round trip and the outcome
			// counter happen once.
			result, ok := c.Get(authResultKey).(domain.AuthResult)
			if !ok {
				result = auth.Authenticate(c.Request().Context(), c.Request())
				c.Set(authResultKey, result)
				metrics.AuthResultsTotal.WithLabelValues(outcomeLabel(result.Status)).Inc()
			}

			switch result.Status {
			case domain.AuthMissing:
				if !required {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, MsgMissingToken)
			case domain.AuthExpired:
				c.SetCookie(cookies.ClearSessionCookie())
				return echo.NewHTTPError(http.StatusUnauthorized, MsgTokenExpired)
			case domain.AuthOK:
				c.Set(principalKey, result.Principal)
				return next(c)
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidToken)
			}
		}
	}
}

func outcomeLabel(status domain.AuthStatus) string {
	switch status {
	case domain.AuthMissing:
		return "missing"
	case domain.AuthExpired:
		return "expired"
	case domain.AuthOK:
		return "ok"
	default:
		return "invalid"
	}
}

// PrincipalFrom returns the principal attached by the auth middleware, or
// nil when the request is anonymous.
func PrincipalFrom(c echo.Context) *domain.Principal {
	p, _ := c.Get(principalKey).(*domain.Principal)
	return p
}
