// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	ws      Workspace
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, ws Workspace) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		ws:      ws,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    h.version,
		"calculator": h.ws.Calculators().Current,
		"models":     len(h.ws.List()),
	})
}
