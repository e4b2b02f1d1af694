package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const multilayerJSON = `{
	"name": "Multilayer Model",
	"scale": 1,
	"background": 1e-6,
	"resolution": 2,
	"materials": {
		"boron": {"name": "Boron", "sld": 6.908, "isld": -0.278},
		"potassium": {"name": "Potassium", "sld": 0.487}
	},
	"layers": {
		"b": {"material": "boron", "thickness": 5, "roughness": 2},
		"k": {"material": "potassium", "thickness": 50, "roughness": 1}
	},
	"items": {"bk": {"layers": ["b", "k"], "repetitions": 2}},
	"structure": ["bk"]
}`

const twoDatasets = `# data_set: up
0.01 0.9 0.01 0.0001
0.02 0.5 0.01 0.0002
0.03 0.1 0.005 0.0003
# data_set: down
0.01 0.8 0.02 0.0001
0.02 0.4 0.02 0.0002
`

type testServer struct {
	e     *echo.Echo
	ws    *session.Manager
	store *measurement.Store
}

func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()
	var store *measurement.Store
	if withStore {
		var err error
		store, err = measurement.NewStore("", measurement.StoreOptions{})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	ws, err := session.NewManager(session.Options{Store: store})
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{})
	RegisterRoutes(e, NewHandlers(&Dependencies{Workspace: ws, Store: store, Version: "test"}))
	return &testServer{e: e, ws: ws, store: store}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}
	return s.do(t, method, path, echo.MIMEApplicationJSON, data)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, code, apiErr.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.json(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, calculators.AbelesName, body["calculator"])
}

func TestModelLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.json(t, http.MethodPost, "/api/models", multilayerJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[session.ModelView](t, rec)
	require.Len(t, view.Items, 1)
	base := "/api/models/" + view.ID
	b, k := view.Items[0].Layers[0].ID, view.Items[0].Layers[1].ID

	t.Run("list and get", func(t *testing.T) {
		rec := s.json(t, http.MethodGet, "/api/models", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]session.ModelSummary](t, rec), 1)

		rec = s.json(t, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Multilayer Model", decode[session.ModelView](t, rec).Name)
	})

	t.Run("items", func(t *testing.T) {
		rec := s.json(t, http.MethodPost, base+"/items", session.NewItem{Name: "reversed", Layers: []string{k, b}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Len(t, decode[session.ModelView](t, rec).Items, 2)

		rec = s.json(t, http.MethodPost, base+"/items/1/duplicate", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Len(t, decode[session.ModelView](t, rec).Items, 3)

		rec = s.json(t, http.MethodGet, base+"/storage", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]int{"material": 4, "layer": 4, "item": 3, "model": 1}, decode[map[string]int](t, rec))

		rec = s.json(t, http.MethodDelete, base+"/items/0", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode[session.ModelView](t, rec).Items, 2)
	})

	t.Run("parameters", func(t *testing.T) {
		rec := s.json(t, http.MethodGet, base+"/parameters", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		params := decode[[]session.ParameterView](t, rec)
		assert.NotEmpty(t, params)

		rec = s.json(t, http.MethodPut, base+"/parameters", bulkUpdateRequest{
			Labels: []string{view.Scale.Label, "nobody/sld"},
			Values: []float64{1.5, 1},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[map[string]interface{}](t, rec)
		assert.Equal(t, float64(1), body["updated"])
		assert.Equal(t, []interface{}{"nobody/sld"}, body["unrecognized"])

		rec = s.json(t, http.MethodPut, base+"/parameters", bulkUpdateRequest{
			Labels: []string{view.Scale.Label},
			Values: []float64{-1},
		})
		assertAPIError(t, rec, http.StatusUnprocessableEntity, "UNPROCESSABLE")
	})

	t.Run("reflectivity", func(t *testing.T) {
		q := []float64{0.01, 0.05, 0.1}
		rec := s.json(t, http.MethodPost, base+"/reflectivity", reflectivityRequest{X: q})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[reflectivityResponse](t, rec)
		assert.Equal(t, q, resp.X)
		require.Len(t, resp.Y, 3)

		rec = s.json(t, http.MethodPost, base+"/reflectivity/msgpack", reflectivityRequest{X: q})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mimeMsgpack, rec.Header().Get(echo.HeaderContentType))
		var packed reflectivityResponse
		require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
		assert.Equal(t, resp.Y, packed.Y)

		rec = s.json(t, http.MethodPost, base+"/reflectivity", reflectivityRequest{})
		assertAPIError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("sld profile", func(t *testing.T) {
		rec := s.json(t, http.MethodGet, base+"/sld", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string][]float64](t, rec)
		assert.Equal(t, len(body["z"]), len(body["sld"]))
		assert.NotEmpty(t, body["z"])
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.json(t, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = s.json(t, http.MethodGet, base, nil)
		assertAPIError(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestCreateModelYAML(t *testing.T) {
	s := newTestServer(t, false)
	doc := "name: Film\nmaterials: {si: {sld: 2.074}}\nlayers: {top: {material: si}}\nitems: {one: {layers: [top]}}\nstructure: [one]\n"
	rec := s.do(t, http.MethodPost, "/api/models", "application/x-yaml", []byte(doc))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Film", decode[session.ModelView](t, rec).Name)

	rec = s.do(t, http.MethodPost, "/api/models", "application/x-yaml", []byte("structure: [missing]\n"))
	assertAPIError(t, rec, http.StatusBadRequest, "BAD_REQUEST")

	rec = s.json(t, http.MethodPost, "/api/models", nil)
	require.Equal(t, http.StatusCreated, rec.Code, "empty body creates the default model")
}

func TestModelHandlerErrors(t *testing.T) {
	s := newTestServer(t, false)
	view, err := s.ws.Create(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  []string
		values  []string
		body    string
		call    func(h ModelHandler, c echo.Context) error
		errCode string
		status  int
	}{
		{
			name:    "unknown model",
			params:  []string{"id"},
			values:  []string{"missing"},
			call:    ModelHandler.HandleGetModel,
			errCode: "NOT_FOUND",
			status:  http.StatusNotFound,
		},
		{
			name:    "index not a number",
			params:  []string{"id", "index"},
			values:  []string{view.ID, "first"},
			call:    ModelHandler.HandleRemoveItem,
			errCode: "BAD_REQUEST",
			status:  http.StatusBadRequest,
		},
		{
			name:    "index out of range",
			params:  []string{"id", "index"},
			values:  []string{view.ID, "5"},
			call:    ModelHandler.HandleDuplicateItem,
			errCode: "UNPROCESSABLE",
			status:  http.StatusUnprocessableEntity,
		},
		{
			name:    "item without layers",
			params:  []string{"id"},
			values:  []string{view.ID},
			body:    `{"name":"empty"}`,
			call:    ModelHandler.HandleAddItem,
			errCode: "VALIDATION_ERROR",
			status:  http.StatusBadRequest,
		},
		{
			name:    "unknown layer",
			params:  []string{"id"},
			values:  []string{view.ID},
			body:    `{"layers":["nope"]}`,
			call:    ModelHandler.HandleAddItem,
			errCode: "UNPROCESSABLE",
			status:  http.StatusUnprocessableEntity,
		},
		{
			name:    "update length mismatch",
			params:  []string{"id"},
			values:  []string{view.ID},
			body:    `{"labels":["a/b","c/d"],"values":[1]}`,
			call:    ModelHandler.HandleBulkUpdate,
			errCode: "BAD_REQUEST",
			status:  http.StatusBadRequest,
		},
		{
			name:    "compare without store",
			params:  []string{"id", "dataset"},
			values:  []string{view.ID, "film"},
			call:    ModelHandler.HandleCompare,
			errCode: "SERVICE_UNAVAILABLE",
			status:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewModelHandler(s.ws)
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := s.e.NewContext(req, rec)
			c.SetParamNames(tt.params...)
			c.SetParamValues(tt.values...)

			err := tt.call(handler, c)
			require.Error(t, err)
			apiErr, ok := err.(*APIError)
			require.True(t, ok, "expected APIError, got %T", err)
			assert.Equal(t, tt.errCode, apiErr.Code)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestCalculatorHandlers(t *testing.T) {
	s := newTestServer(t, false)
	_, err := s.ws.Create(nil)
	require.NoError(t, err)

	rec := s.json(t, http.MethodGet, "/api/calculators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calculators.AbelesName, decode[session.CalculatorInfo](t, rec).Current)

	rec = s.json(t, http.MethodGet, "/api/calculators/reflections?from=10&to=40", nil)
	assertAPIError(t, rec, http.StatusConflict, "CONFLICT")

	rec = s.json(t, http.MethodPut, "/api/calculators", setCalculatorRequest{Name: calculators.PowderName})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, calculators.PowderName, decode[session.CalculatorInfo](t, rec).Current)

	rec = s.json(t, http.MethodGet, "/api/calculators/reflections?from=10&to=40", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refl := decode[[]calculators.Reflection](t, rec)
	require.NotEmpty(t, refl)
	assert.Equal(t, 6, refl[0].Multiplicity)

	rec = s.json(t, http.MethodGet, "/api/calculators/reflections?from=40&to=10", nil)
	assertAPIError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = s.json(t, http.MethodPut, "/api/calculators", setCalculatorRequest{Name: "nope"})
	assertAPIError(t, rec, http.StatusBadRequest, "BAD_REQUEST")

	rec = s.json(t, http.MethodPut, "/api/calculators", setCalculatorRequest{})
	assertAPIError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestDatasetHandlers(t *testing.T) {
	s := newTestServer(t, true)
	upload := func(name, text string) *httptest.ResponseRecorder {
		return s.json(t, http.MethodPost, "/api/datasets", uploadDatasetRequest{
			Name: name,
			Data: base64.StdEncoding.EncodeToString([]byte(text)),
		})
	}

	t.Run("upload", func(t *testing.T) {
		rec := upload("film", twoDatasets)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		infos := decode[[]measurement.DatasetInfo](t, rec)
		require.Len(t, infos, 2)
		assert.Equal(t, "film:up", infos[0].Name)
		assert.Equal(t, 3, infos[0].Points)
		assert.Equal(t, 0.03, infos[0].QMax)

		rec = upload("single", "0.01 1 0.1\n0.02 0.5 0.1\n")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "single", decode[[]measurement.DatasetInfo](t, rec)[0].Name)
	})

	t.Run("upload errors", func(t *testing.T) {
		assertAPIError(t, upload("", twoDatasets), http.StatusBadRequest, "VALIDATION_ERROR")
		assertAPIError(t, upload("x", ""), http.StatusBadRequest, "VALIDATION_ERROR")
		assertAPIError(t, upload("a/b", twoDatasets), http.StatusBadRequest, "BAD_REQUEST")
		assertAPIError(t, upload("x", "# nothing\n"), http.StatusUnprocessableEntity, "UNPROCESSABLE")

		rec := s.json(t, http.MethodPost, "/api/datasets", uploadDatasetRequest{Name: "x", Data: "not-valid!!!"})
		assertAPIError(t, rec, http.StatusBadRequest, "BAD_REQUEST")
	})

	t.Run("list and get", func(t *testing.T) {
		rec := s.json(t, http.MethodGet, "/api/datasets", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]measurement.DatasetInfo](t, rec), 3)

		rec = s.json(t, http.MethodGet, "/api/datasets/film:up?qmin=0.015&qmax=0.05", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ds := decode[measurement.DataSet1D](t, rec)
		assert.Equal(t, []float64{0.02, 0.03}, ds.X)

		rec = s.json(t, http.MethodGet, "/api/datasets/film:up?qmin=0.025", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []float64{0.03}, decode[measurement.DataSet1D](t, rec).X)

		req := httptest.NewRequest(http.MethodGet, "/api/datasets/film:down", nil)
		req.Header.Set(echo.HeaderAccept, mimeMsgpack)
		rec = httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var packed measurement.DataSet1D
		require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
		assert.Equal(t, []float64{0.8, 0.4}, packed.Y)

		rec = s.json(t, http.MethodGet, "/api/datasets/film:up?qmin=x", nil)
		assertAPIError(t, rec, http.StatusBadRequest, "BAD_REQUEST")
	})

	t.Run("compare", func(t *testing.T) {
		view, err := s.ws.Create(nil)
		require.NoError(t, err)
		rec := s.json(t, http.MethodGet, fmt.Sprintf("/api/models/%s/compare/single", view.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cmp := decode[session.Comparison](t, rec)
		assert.Len(t, cmp.Model, 2)
		assert.GreaterOrEqual(t, cmp.ChiSquared, 0.0)
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.json(t, http.MethodDelete, "/api/datasets/single", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = s.json(t, http.MethodDelete, "/api/datasets/single", nil)
		assertAPIError(t, rec, http.StatusNotFound, "NOT_FOUND")
		rec = s.json(t, http.MethodGet, "/api/datasets/single", nil)
		assertAPIError(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestDatasetHandlersWithoutStore(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.json(t, http.MethodGet, "/api/datasets", nil)
	assertAPIError(t, rec, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
}
