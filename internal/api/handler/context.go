package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/api/middleware"
	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

// ctxPrincipal extracts the principal injected by the auth middleware and
// performs a fast-fail check before any service call: a handler mounted
// behind RequireAuth must never observe an anonymous request, so a nil
// principal here means a wiring mistake, rejected with 401 rather than
// trusted.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}
