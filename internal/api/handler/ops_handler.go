package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OpsHandler exposes operational state to admin-capability staff.
type OpsHandler struct {
	maintenanceEnabled func() bool
}

func NewOpsHandler(maintenanceEnabled func() bool) *OpsHandler {
	return &OpsHandler{maintenanceEnabled: maintenanceEnabled}
}

// MaintenanceStatus reports the currently observed maintenance flag.
//
// @Summary      Maintenance flag state
// @Tags         ops
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /ops/maintenance [get]
func (h *OpsHandler) MaintenanceStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"maintenance": h.maintenanceEnabled(),
	})
}
