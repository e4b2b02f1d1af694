// handlers_datasets.go - Measured dataset handlers
package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/vmihailenco/msgpack/v5"
)

// DatasetHandlerImpl implements the DatasetHandler interface
type DatasetHandlerImpl struct {
	store DatasetStore
}

// NewDatasetHandler creates a new dataset handler. A nil store answers every
// request with 503.
func NewDatasetHandler(store DatasetStore) DatasetHandler {
	return &DatasetHandlerImpl{store: store}
}

type uploadDatasetRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded ORSO or column text
}

func (h *DatasetHandlerImpl) available() error {
	if h.store == nil {
		return NewServiceUnavailableError("measurement storage is disabled")
	}
	return nil
}

// HandleUploadDataset loads a data file and stores every dataset in it. A
// single dataset takes the upload name; several are stored as name:dataset.
func (h *DatasetHandlerImpl) HandleUploadDataset(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	var req uploadDatasetRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}
	if req.Data == "" {
		return NewValidationError("data")
	}
	if strings.Contains(req.Name, "/") {
		return NewBadRequestError("name must not contain '/'", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}
	sets, err := measurement.Load(bytes.NewReader(raw))
	if err != nil {
		return NewUnprocessableError("failed to read data file", err)
	}

	ctx := c.Request().Context()
	infos := make([]measurement.DatasetInfo, 0, len(sets))
	for _, ds := range sets {
		if len(sets) == 1 {
			ds.Name = req.Name
		} else {
			ds.Name = fmt.Sprintf("%s:%s", req.Name, strings.ReplaceAll(ds.Name, "/", "_"))
		}
		if err := h.store.Save(ctx, ds); err != nil {
			return FromError(err)
		}
		info := measurement.DatasetInfo{Name: ds.Name, Points: ds.Len(), QMin: ds.X[0], QMax: ds.X[0]}
		for _, q := range ds.X {
			info.QMin, info.QMax = min(info.QMin, q), max(info.QMax, q)
		}
		infos = append(infos, info)
	}
	return c.JSON(http.StatusCreated, infos)
}

// HandleListDatasets lists the stored datasets
func (h *DatasetHandlerImpl) HandleListDatasets(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	infos, err := h.store.List(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list datasets", err)
	}
	return c.JSON(http.StatusOK, infos)
}

// HandleGetDataset returns a dataset, optionally restricted to qmin..qmax.
// Clients accepting application/msgpack get MessagePack.
func (h *DatasetHandlerImpl) HandleGetDataset(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	name := c.Param("name")
	if name == "" {
		return NewValidationError("name")
	}
	qmin, qmax, err := qRange(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var ds *measurement.DataSet1D
	if qmax > 0 {
		ds, err = h.store.Range(ctx, name, qmin, qmax)
	} else {
		ds, err = h.store.DataSet(ctx, name)
		if err == nil && qmin > 0 {
			ds = ds.Range(qmin, math.Inf(1))
		}
	}
	if err != nil {
		return FromError(err)
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeMsgpack) {
		data, err := msgpack.Marshal(ds)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, mimeMsgpack, data)
	}
	return c.JSON(http.StatusOK, ds)
}

// HandleDeleteDataset removes a dataset
func (h *DatasetHandlerImpl) HandleDeleteDataset(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	name := c.Param("name")
	if name == "" {
		return NewValidationError("name")
	}
	if err := h.store.Delete(c.Request().Context(), name); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
