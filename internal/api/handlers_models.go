// handlers_models.go - Model editing and calculation handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/session"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

// ModelHandlerImpl implements the ModelHandler interface
type ModelHandlerImpl struct {
	ws Workspace
}

// NewModelHandler creates a new model handler
func NewModelHandler(ws Workspace) ModelHandler {
	return &ModelHandlerImpl{ws: ws}
}

type bulkUpdateRequest struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type reflectivityRequest struct {
	X []float64 `json:"x"`
}

type reflectivityResponse struct {
	ModelID string    `json:"modelId" msgpack:"modelId"`
	X       []float64 `json:"x" msgpack:"x"`
	Y       []float64 `json:"y" msgpack:"y"`
}

func isYAML(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.Contains(ct, "yaml")
}

func modelID(c echo.Context) (string, error) {
	id := c.Param("id")
	if id == "" {
		return "", NewValidationError("id")
	}
	return id, nil
}

func itemIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, NewBadRequestError("index must be an integer", err)
	}
	return index, nil
}

// HandleCreateModel builds a model from a JSON or YAML blueprint. An empty
// body creates the default model.
func (h *ModelHandlerImpl) HandleCreateModel(c echo.Context) error {
	var bp *session.Blueprint
	if isYAML(c) {
		decoded, err := session.DecodeBlueprintYAML(c.Request().Body)
		if err != nil {
			return FromError(err)
		}
		bp = decoded
	} else {
		bp = &session.Blueprint{}
		if err := c.Bind(bp); err != nil {
			return NewBadRequestError("invalid blueprint body", err)
		}
	}

	view, err := h.ws.Create(bp)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleListModels lists the workspace models
func (h *ModelHandlerImpl) HandleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.List())
}

// HandleGetModel returns one model
func (h *ModelHandlerImpl) HandleGetModel(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	view, err := h.ws.Get(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleDeleteModel drops a model
func (h *ModelHandlerImpl) HandleDeleteModel(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	if err := h.ws.Delete(id); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleAddItem appends an item built from existing layers
func (h *ModelHandlerImpl) HandleAddItem(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	var req session.NewItem
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid item body", err)
	}
	if len(req.Layers) == 0 {
		return NewValidationError("layers")
	}
	view, err := h.ws.AddItem(id, req)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleDuplicateItem appends a copy of the item at :index
func (h *ModelHandlerImpl) HandleDuplicateItem(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	index, err := itemIndex(c)
	if err != nil {
		return err
	}
	view, err := h.ws.DuplicateItem(id, index)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleRemoveItem deletes the item at :index
func (h *ModelHandlerImpl) HandleRemoveItem(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	index, err := itemIndex(c)
	if err != nil {
		return err
	}
	view, err := h.ws.RemoveItem(id, index)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleGetParameters lists the model parameters with their labels
func (h *ModelHandlerImpl) HandleGetParameters(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	params, err := h.ws.Parameters(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, params)
}

// HandleBulkUpdate sets several parameters and reports the labels that were
// not recognised
func (h *ModelHandlerImpl) HandleBulkUpdate(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	var req bulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid update body", err)
	}
	if len(req.Labels) == 0 {
		return NewValidationError("labels")
	}
	unknown, err := h.ws.BulkUpdate(id, req.Labels, req.Values)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"updated":      len(req.Labels) - len(unknown),
		"unrecognized": unknown,
	})
}

func (h *ModelHandlerImpl) reflectivity(c echo.Context) (*reflectivityResponse, error) {
	id, err := modelID(c)
	if err != nil {
		return nil, err
	}
	var req reflectivityRequest
	if err := c.Bind(&req); err != nil {
		return nil, NewBadRequestError("invalid reflectivity body", err)
	}
	if len(req.X) == 0 {
		return nil, NewValidationError("x")
	}
	y, err := h.ws.Reflectivity(id, req.X)
	if err != nil {
		return nil, FromError(err)
	}
	return &reflectivityResponse{ModelID: id, X: req.X, Y: y}, nil
}

// HandleReflectivity evaluates the model at the posted points
func (h *ModelHandlerImpl) HandleReflectivity(c echo.Context) error {
	resp, err := h.reflectivity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleReflectivityMsgpack is HandleReflectivity with a MessagePack body
func (h *ModelHandlerImpl) HandleReflectivityMsgpack(c echo.Context) error {
	resp, err := h.reflectivity(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, mimeMsgpack, data)
}

// HandleSLDProfile returns the scattering length density profile
func (h *ModelHandlerImpl) HandleSLDProfile(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	z, sld, err := h.ws.SLDProfile(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"z":   z,
		"sld": sld,
	})
}

// HandleCompare evaluates the model against a stored dataset. Optional
// qmin and qmax query parameters restrict the range.
func (h *ModelHandlerImpl) HandleCompare(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	name := c.Param("dataset")
	if name == "" {
		return NewValidationError("dataset")
	}
	qmin, qmax, err := qRange(c)
	if err != nil {
		return err
	}
	cmp, err := h.ws.Compare(c.Request().Context(), id, name, qmin, qmax)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, cmp)
}

// HandleStorage reports the calculator mirror size per entity kind
func (h *ModelHandlerImpl) HandleStorage(c echo.Context) error {
	id, err := modelID(c)
	if err != nil {
		return err
	}
	if _, err := h.ws.Get(id); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, h.ws.StorageCounts())
}

// qRange reads the optional qmin/qmax query parameters
func qRange(c echo.Context) (qmin, qmax float64, err error) {
	if s := c.QueryParam("qmin"); s != "" {
		if qmin, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, 0, NewBadRequestError("qmin must be a number", err)
		}
	}
	if s := c.QueryParam("qmax"); s != "" {
		if qmax, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, 0, NewBadRequestError("qmax must be a number", err)
		}
	}
	if qmax > 0 && qmax < qmin {
		return 0, 0, NewValidationError("qmax")
	}
	return qmin, qmax, nil
}
