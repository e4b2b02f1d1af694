// handlers_calculators.go - Calculator selection handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// CalculatorHandlerImpl implements the CalculatorHandler interface
type CalculatorHandlerImpl struct {
	ws Workspace
}

// NewCalculatorHandler creates a new calculator handler
func NewCalculatorHandler(ws Workspace) CalculatorHandler {
	return &CalculatorHandlerImpl{ws: ws}
}

type setCalculatorRequest struct {
	Name string `json:"name"`
}

// HandleGetCalculators returns the active calculator and the alternatives
func (h *CalculatorHandlerImpl) HandleGetCalculators(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.Calculators())
}

// HandleSetCalculator switches calculator and re-registers every model
func (h *CalculatorHandlerImpl) HandleSetCalculator(c echo.Context) error {
	var req setCalculatorRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid calculator body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}
	if err := h.ws.SwitchCalculator(req.Name); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, h.ws.Calculators())
}

// HandleReflections lists the Bragg reflections between the from and to
// scattering angles, for calculators that index reflections.
func (h *CalculatorHandlerImpl) HandleReflections(c echo.Context) error {
	from, err := strconv.ParseFloat(c.QueryParam("from"), 64)
	if err != nil {
		return NewValidationError("from")
	}
	to, err := strconv.ParseFloat(c.QueryParam("to"), 64)
	if err != nil || to <= from {
		return NewValidationError("to")
	}
	refl, err := h.ws.Reflections([]float64{from, to})
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, refl)
}
