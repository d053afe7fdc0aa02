package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/api/metrics"
)

// MsgMaintenance is the body returned while the platform is closed for
// maintenance.
const MsgMaintenance = "Service under maintenance"

// Maintenance short-circuits all traffic while the maintenance flag is set,
// regardless of who the caller is. The flag func must be cheap and
// lock-free; eventual consistency across requests is acceptable.
func Maintenance(enabled func() bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if enabled() {
				metrics.MaintenanceRejectionsTotal.Inc()
				return echo.NewHTTPError(http.StatusServiceUnavailable, MsgMaintenance)
			}
			return next(c)
		}
	}
}
