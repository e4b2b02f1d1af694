// Package session keeps the workspace of models served by the API. All models
// share one calculator factory, so a calculator switch re-registers every
// model against the new adapter.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/models"
)

// DefaultMaxModels limits the workspace size. Creating a model beyond it
// evicts the least recently used one.
const DefaultMaxModels = 32

var (
	ErrNotFound     = errors.New("model not found")
	ErrUnknownLayer = errors.New("layer not found in model")
	ErrNoStore      = errors.New("no measurement store configured")
)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Factory   *calculators.Factory
	Store     *measurement.Store
	Logger    *slog.Logger
	MaxModels int
}

type modelState struct {
	model        *models.Model
	createdAt    time.Time
	lastAccessed time.Time
}

// Manager owns the workspace models.
type Manager struct {
	mu        sync.RWMutex
	models    map[string]*modelState
	factory   *calculators.Factory
	store     *measurement.Store
	logger    *slog.Logger
	maxModels int
}

// NewManager builds a manager. Without a factory it creates one over the
// global calculator registry.
func NewManager(opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := opts.Factory
	if factory == nil {
		var err error
		factory, err = calculators.NewFactory(nil, logger)
		if err != nil {
			return nil, err
		}
	}
	maxModels := opts.MaxModels
	if maxModels <= 0 {
		maxModels = DefaultMaxModels
	}
	return &Manager{
		models:    make(map[string]*modelState),
		factory:   factory,
		store:     opts.Store,
		logger:    logger.With("component", "session"),
		maxModels: maxModels,
	}, nil
}

// Factory returns the shared calculator factory.
func (m *Manager) Factory() *calculators.Factory { return m.factory }

// Store returns the measurement store, or nil.
func (m *Manager) Store() *measurement.Store { return m.store }

// Create builds a model from bp and attaches it to the calculator.
func (m *Manager) Create(bp *Blueprint) (ModelView, error) {
	if bp == nil {
		bp = &Blueprint{}
	}
	model, err := bp.Build()
	if err != nil {
		return ModelView{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.models) >= m.maxModels {
		if err := m.evictLocked(); err != nil {
			return ModelView{}, err
		}
	}
	if err := model.SetInterface(m.factory); err != nil {
		return ModelView{}, fmt.Errorf("attaching model %s: %w", model.Name(), err)
	}
	now := time.Now()
	state := &modelState{model: model, createdAt: now, lastAccessed: now}
	m.models[model.ID()] = state

	m.logger.Info("model created", "id", model.ID(), "name", model.Name(), "items", model.Structure().Len())
	return m.viewLocked(state), nil
}

// Get returns a snapshot of the model and marks it as used.
func (m *Manager) Get(id string) (ModelView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return ModelView{}, err
	}
	return m.viewLocked(state), nil
}

// List returns every model ordered by creation time.
func (m *Manager) List() []ModelSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ModelSummary, 0, len(m.models))
	for _, state := range m.models {
		out = append(out, ModelSummary{
			ID:        state.model.ID(),
			Name:      state.model.Name(),
			Items:     state.model.Structure().Len(),
			CreatedAt: state.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete detaches and drops a model.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := m.dropLocked(id); err != nil {
		return err
	}
	m.logger.Info("model deleted", "id", id)
	return nil
}

// NewItem describes an item appended to an existing model. Layers holds the
// IDs of layers already in the model; they are shared, not copied.
type NewItem struct {
	Name        string   `json:"name"`
	Layers      []string `json:"layers"`
	Repetitions *float64 `json:"repetitions,omitempty"`
}

// AddItem appends a new item built from layers of the same model.
func (m *Manager) AddItem(id string, spec NewItem) (ModelView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return ModelView{}, err
	}
	if len(spec.Layers) == 0 {
		return ModelView{}, fmt.Errorf("%w: item has no layers", ErrBlueprint)
	}

	name := nameOr(spec.Name, models.DefaultItemName)
	stack := models.NewLayers(name)
	for _, lid := range spec.Layers {
		l := layerByID(state.model, lid)
		if l == nil {
			return ModelView{}, fmt.Errorf("%w: %s", ErrUnknownLayer, lid)
		}
		stack.Append(l)
	}
	it, err := models.ItemFromPars(stack, valueOr(spec.Repetitions, models.FieldRepetitions), name)
	if err != nil {
		return ModelView{}, err
	}
	if err := state.model.AddItem(it); err != nil {
		return ModelView{}, err
	}
	m.logger.Debug("item added", "model", id, "item", it.ID())
	return m.viewLocked(state), nil
}

// DuplicateItem appends a deep copy of the item at index.
func (m *Manager) DuplicateItem(id string, index int) (ModelView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return ModelView{}, err
	}
	dup, err := state.model.DuplicateItem(index)
	if err != nil {
		return ModelView{}, err
	}
	m.logger.Debug("item duplicated", "model", id, "index", index, "item", dup.ID())
	return m.viewLocked(state), nil
}

// RemoveItem deletes the item at index.
func (m *Manager) RemoveItem(id string, index int) (ModelView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return ModelView{}, err
	}
	if err := state.model.RemoveItem(index); err != nil {
		return ModelView{}, err
	}
	m.logger.Debug("item removed", "model", id, "index", index)
	return m.viewLocked(state), nil
}

// BulkUpdate sets several parameters at once. Labels of this model's
// parameters go through the parameter, so bounds are checked and the change
// is mirrored. Bare labels go to the calculator directly. The labels that
// neither recognised are returned.
//
// Every value is checked against its bounds before the first one is applied,
// so an out-of-bounds value changes nothing. A failure inside the calculator
// can still leave the earlier labels applied.
func (m *Manager) BulkUpdate(id string, labels []string, values []float64) ([]string, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("%w: %d labels, %d values", calculators.ErrLengthMismatch, len(labels), len(values))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return nil, err
	}

	params := parameters(state.model)
	for i, label := range labels {
		if p, ok := params[label]; ok {
			if err := p.Validate(values[i]); err != nil {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
		}
	}

	unknown := []string{}
	var bareLabels []string
	var bareValues []float64
	for i, label := range labels {
		if p, ok := params[label]; ok {
			if err := p.SetValue(values[i]); err != nil {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
			continue
		}
		if owner, _ := models.SplitLabel(label); owner == "" {
			bareLabels = append(bareLabels, label)
			bareValues = append(bareValues, values[i])
			continue
		}
		unknown = append(unknown, label)
	}

	if len(bareLabels) > 0 {
		rejected, err := m.factory.BulkUpdate(bareLabels, bareValues, true)
		if err != nil {
			return nil, err
		}
		unknown = append(unknown, rejected...)
	}
	if len(unknown) > 0 {
		m.logger.Warn("unrecognised parameters", "model", id, "labels", unknown)
	}
	return unknown, nil
}

// Parameters lists every parameter of the model, ordered by label.
func (m *Manager) Parameters(id string) ([]ParameterView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.touchLocked(id)
	if err != nil {
		return nil, err
	}
	params := parameters(state.model)
	out := make([]ParameterView, 0, len(params))
	for label, p := range params {
		owner, field := models.SplitLabel(label)
		out = append(out, paramView(owner, field, p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Reflectivity evaluates the active calculator at x.
func (m *Manager) Reflectivity(id string, x []float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.touchLocked(id); err != nil {
		return nil, err
	}
	return m.factory.FitFunc(x, id)
}

// SLDProfile returns the scattering length density across the sample.
func (m *Manager) SLDProfile(id string) (z, sld []float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.touchLocked(id); err != nil {
		return nil, nil, err
	}
	return m.factory.SLDProfile(id)
}

// Reflections lists the Bragg reflections over the range of x.
func (m *Manager) Reflections(x []float64) ([]calculators.Reflection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.factory.GetHKL(x)
}

// Comparison is a model evaluated against a stored dataset.
type Comparison struct {
	Dataset    string    `json:"dataset" msgpack:"dataset"`
	X          []float64 `json:"x" msgpack:"x"`
	Y          []float64 `json:"y" msgpack:"y"`
	Model      []float64 `json:"model" msgpack:"model"`
	ChiSquared float64   `json:"chi2" msgpack:"chi2"`
}

// Compare evaluates the model at the points of a stored dataset within
// [qmin, qmax] and reports the chi squared. A qmax of zero means no upper
// bound.
func (m *Manager) Compare(ctx context.Context, id, dataset string, qmin, qmax float64) (*Comparison, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	var (
		ds  *measurement.DataSet1D
		err error
	)
	if qmax > 0 {
		ds, err = m.store.Range(ctx, dataset, qmin, qmax)
	} else {
		ds, err = m.store.DataSet(ctx, dataset)
		if err == nil && qmin > 0 {
			ds = ds.Range(qmin, math.Inf(1))
		}
	}
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset %s in range: %w", dataset, measurement.ErrNoData)
	}

	y, err := m.Reflectivity(id, ds.X)
	if err != nil {
		return nil, err
	}
	chi2, err := measurement.ChiSquared(ds, y)
	if err != nil {
		return nil, err
	}
	return &Comparison{Dataset: dataset, X: ds.X, Y: ds.Y, Model: y, ChiSquared: chi2}, nil
}

// StorageCounts reports the calculator mirror size per entity kind.
func (m *Manager) StorageCounts() map[calculators.Kind]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.factory.Current().Storage().Counts()
}

// CalculatorInfo names the active calculator and the alternatives.
type CalculatorInfo struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// Calculators describes the calculator choice.
func (m *Manager) Calculators() CalculatorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CalculatorInfo{Current: m.factory.CurrentName(), Available: m.factory.Available()}
}

// SwitchCalculator activates the named calculator and re-registers every
// model with it. On failure the previous calculator is restored.
func (m *Manager) SwitchCalculator(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.factory.CurrentName()
	if err := m.factory.Switch(name); err != nil {
		return err
	}
	if err := m.registerAllLocked(); err != nil {
		m.logger.Error("re-registration failed, restoring calculator", "calculator", name, "error", err)
		if rerr := m.factory.Switch(previous); rerr != nil {
			return errors.Join(err, rerr)
		}
		return errors.Join(err, m.registerAllLocked())
	}
	m.logger.Info("calculator switched", "from", previous, "to", m.factory.CurrentName(), "models", len(m.models))
	return nil
}

// CleanupOldModels drops models not used within maxAge.
func (m *Manager) CleanupOldModels(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for id, state := range m.models {
		if state.lastAccessed.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if err := m.dropLocked(id); err != nil {
			m.logger.Error("dropping aged model", "id", id, "error", err)
			continue
		}
		m.logger.Info("cleaned up aged model", "id", id)
	}
	return len(stale)
}

func (m *Manager) touchLocked(id string) (*modelState, error) {
	state, ok := m.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state.lastAccessed = time.Now()
	return state, nil
}

func (m *Manager) viewLocked(state *modelState) ModelView {
	v := viewModel(state.model)
	v.Calculator = m.factory.CurrentName()
	v.CreatedAt = state.createdAt
	v.LastAccessed = state.lastAccessed
	return v
}

// evictLocked drops the least recently used model.
func (m *Manager) evictLocked() error {
	var oldest *modelState
	for _, state := range m.models {
		if oldest == nil || state.lastAccessed.Before(oldest.lastAccessed) {
			oldest = state
		}
	}
	if oldest == nil {
		return nil
	}
	id := oldest.model.ID()
	m.logger.Info("evicting least recently used model", "id", id, "idle", time.Since(oldest.lastAccessed).Round(time.Second))
	return m.dropLocked(id)
}

// dropLocked detaches a model and rebuilds the calculator mirror from the
// remaining ones, so no record of the dropped model survives.
func (m *Manager) dropLocked(id string) error {
	state := m.models[id]
	delete(m.models, id)
	if err := state.model.SetInterface(nil); err != nil {
		return err
	}
	m.factory.ResetStorage()
	return m.registerAllLocked()
}

func (m *Manager) registerAllLocked() error {
	ids := make([]string, 0, len(m.models))
	for id := range m.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		model := m.models[id].model
		if err := model.SetInterface(m.factory); err != nil {
			return fmt.Errorf("registering model %s: %w", model.Name(), err)
		}
	}
	return nil
}
