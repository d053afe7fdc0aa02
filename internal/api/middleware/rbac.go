package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/api/metrics"
	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

// MsgForbidden is the generic denial body. Guards never name the role or
// capability they wanted.
const MsgForbidden = "Forbidden"

// RequireRole allows the request when the principal's effective role set
// intersects the allowed roles, or when the principal is admin-equivalent.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if domain.IsAdminEquivalent(p) {
				return next(c)
			}
			if p == nil || !p.SatisfiesAnyRole(allowed...) {
				metrics.GuardDenialsTotal.WithLabelValues("role").Inc()
				return echo.NewHTTPError(http.StatusForbidden, MsgForbidden)
			}
			return next(c)
		}
	}
}

// RequireCapability allows the request when the principal carries any of the
// allowed capabilities, with the same admin bypass. Only staff principals
// carry capabilities; everyone else is denied unless admin-equivalent.
func RequireCapability(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if domain.IsAdminEquivalent(p) {
				return next(c)
			}
			for _, capability := range allowed {
				if p.HasCapability(capability) {
					return next(c)
				}
			}
			metrics.GuardDenialsTotal.WithLabelValues("capability").Inc()
			return echo.NewHTTPError(http.StatusForbidden, MsgForbidden)
		}
	}
}
