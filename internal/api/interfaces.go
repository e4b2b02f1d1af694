// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/session"
)

// ModelHandler handles model editing and calculation
type ModelHandler interface {
	HandleCreateModel(c echo.Context) error
	HandleListModels(c echo.Context) error
	HandleGetModel(c echo.Context) error
	HandleDeleteModel(c echo.Context) error
	HandleAddItem(c echo.Context) error
	HandleDuplicateItem(c echo.Context) error
	HandleRemoveItem(c echo.Context) error
	HandleGetParameters(c echo.Context) error
	HandleBulkUpdate(c echo.Context) error
	HandleReflectivity(c echo.Context) error
	HandleReflectivityMsgpack(c echo.Context) error
	HandleSLDProfile(c echo.Context) error
	HandleCompare(c echo.Context) error
	HandleStorage(c echo.Context) error
}

// CalculatorHandler handles calculator selection
type CalculatorHandler interface {
	HandleGetCalculators(c echo.Context) error
	HandleSetCalculator(c echo.Context) error
	HandleReflections(c echo.Context) error
}

// DatasetHandler handles measured data
type DatasetHandler interface {
	HandleUploadDataset(c echo.Context) error
	HandleListDatasets(c echo.Context) error
	HandleGetDataset(c echo.Context) error
	HandleDeleteDataset(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Workspace defines the model operations the handlers need.
// This allows mocking in tests
type Workspace interface {
	Create(bp *session.Blueprint) (session.ModelView, error)
	Get(id string) (session.ModelView, error)
	List() []session.ModelSummary
	Delete(id string) error
	AddItem(id string, spec session.NewItem) (session.ModelView, error)
	DuplicateItem(id string, index int) (session.ModelView, error)
	RemoveItem(id string, index int) (session.ModelView, error)
	BulkUpdate(id string, labels []string, values []float64) ([]string, error)
	Parameters(id string) ([]session.ParameterView, error)
	Reflectivity(id string, x []float64) ([]float64, error)
	SLDProfile(id string) (z, sld []float64, err error)
	Reflections(x []float64) ([]calculators.Reflection, error)
	Compare(ctx context.Context, id, dataset string, qmin, qmax float64) (*session.Comparison, error)
	StorageCounts() map[calculators.Kind]int
	Calculators() session.CalculatorInfo
	SwitchCalculator(name string) error
}

// DatasetStore persists measured datasets
type DatasetStore interface {
	Save(ctx context.Context, ds *measurement.DataSet1D) error
	DataSet(ctx context.Context, name string) (*measurement.DataSet1D, error)
	Range(ctx context.Context, name string, qmin, qmax float64) (*measurement.DataSet1D, error)
	List(ctx context.Context) ([]measurement.DatasetInfo, error)
	Delete(ctx context.Context, name string) error
}

var (
	_ Workspace    = (*session.Manager)(nil)
	_ DatasetStore = (*measurement.Store)(nil)
)
