// Package calculators binds the sample model to numerical back ends. Each
// back end is wrapped by an Adapter that keeps a storage mirror of the model,
// translates abstract parameter labels into native attribute names, and
// evaluates the model on demand. The Factory picks one adapter at a time.
package calculators

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/refl-model/backend/internal/models"
)

// Adapter is the contract every calculator binding fulfils. The structural
// half (Create*, Assign*, Add*, Remove*) keeps the storage mirror in sync.
type Adapter interface {
	models.Interface

	Name() string
	Calculator() Calculator
	Storage() *Storage
	ResetStorage()

	GetValue(label string) (float64, error)
	GetInstrumentValue(label string) (float64, error)

	// BulkUpdate applies labels[i] = values[i] in order and returns the labels
	// it could not route. With external set, labels are abstract names and are
	// translated; otherwise they are already native.
	BulkUpdate(labels []string, values []float64, external bool) ([]string, error)

	// FitFunc evaluates the model at x. Single-model calculators ignore modelID.
	FitFunc(x []float64, modelID string) ([]float64, error)
}

// Profiler is implemented by adapters that can compute a depth profile.
type Profiler interface {
	SLDProfile(modelID string) (z, sld []float64, err error)
}

// HKLProvider is implemented by adapters with a crystal phase.
type HKLProvider interface {
	GetHKL(x []float64) ([]Reflection, error)
}

// BackgroundHandler is implemented by adapters that carry an indexed
// background and pattern. A non-nil bg or p is first assigned to the
// calculator; the index then addresses the assigned object.
type BackgroundHandler interface {
	GetBackgroundValue(bg *Background, i int) (float64, error)
	SetBackgroundValue(bg *Background, i int, v float64) error
	GetPatternValue(p Pattern, i int) (float64, error)
	SetPatternValue(p Pattern, i int, v float64) error
}

// Calculator is the numerical engine behind an adapter.
type Calculator interface {
	Storage() *Storage
}

// mirror implements the structural half of Adapter over a Storage. Adapters
// embed it and supply the native defaults each kind is seeded with.
type mirror struct {
	name     string
	storage  *Storage
	defaults map[Kind]map[string]float64
	logger   *slog.Logger
}

func newMirror(name string, storage *Storage, defaults map[Kind]map[string]float64, logger *slog.Logger) mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return mirror{
		name:     name,
		storage:  storage,
		defaults: defaults,
		logger:   logger.With("calculator", name),
	}
}

func (m *mirror) Name() string      { return m.name }
func (m *mirror) Storage() *Storage { return m.storage }
func (m *mirror) ResetStorage()     { m.storage.Reset() }

func (m *mirror) create(kind Kind, id, name string) error {
	if id == "" {
		return fmt.Errorf("%s: empty %s id", m.name, kind)
	}
	if _, added := m.storage.Add(kind, id, name, m.defaults[kind]); added {
		m.logger.Debug("record created", "kind", kind, "id", id, "name", name)
	}
	return nil
}

func (m *mirror) CreateMaterial(id, name string) error { return m.create(KindMaterial, id, name) }
func (m *mirror) CreateLayer(id, name string) error    { return m.create(KindLayer, id, name) }
func (m *mirror) CreateItem(id, name string) error     { return m.create(KindItem, id, name) }
func (m *mirror) CreateModel(id, name string) error    { return m.create(KindModel, id, name) }

func (m *mirror) AssignMaterialToLayer(materialID, layerID string) error {
	layer, err := m.storage.Get(KindLayer, layerID)
	if err != nil {
		return err
	}
	if _, err := m.storage.Get(KindMaterial, materialID); err != nil {
		return err
	}
	layer.Children = []string{materialID}
	return nil
}

func (m *mirror) AddLayerToItem(layerID, itemID string) error {
	item, err := m.storage.Get(KindItem, itemID)
	if err != nil {
		return err
	}
	if _, err := m.storage.Get(KindLayer, layerID); err != nil {
		return err
	}
	item.Children = append(item.Children, layerID)
	return nil
}

// RemoveLayerFromItem drops the reference at index, which must name layerID.
// The layer record is kept.
func (m *mirror) RemoveLayerFromItem(layerID, itemID string, index int) error {
	item, err := m.storage.Get(KindItem, itemID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(item.Children) || item.Children[index] != layerID {
		return &EntityError{Kind: KindLayer, ID: layerID}
	}
	item.Children = slices.Delete(item.Children, index, index+1)
	return nil
}

func (m *mirror) AddItem(itemID, modelID string) error {
	model, err := m.storage.Get(KindModel, modelID)
	if err != nil {
		return err
	}
	if _, err := m.storage.Get(KindItem, itemID); err != nil {
		return err
	}
	model.Children = append(model.Children, itemID)
	return nil
}

// RemoveItem detaches the item from the model and deletes its record unless
// another model still uses it. Layers and materials stay mirrored.
func (m *mirror) RemoveItem(itemID, modelID string) (bool, error) {
	model, err := m.storage.Get(KindModel, modelID)
	if err != nil {
		return false, err
	}
	i := slices.Index(model.Children, itemID)
	if i < 0 {
		return false, &EntityError{Kind: KindItem, ID: itemID}
	}
	model.Children = slices.Delete(model.Children, i, i+1)
	if m.storage.Referenced(itemID) {
		return false, nil
	}
	m.logger.Debug("record removed", "kind", KindItem, "id", itemID)
	if err := m.storage.Remove(KindItem, itemID); err != nil {
		return false, err
	}
	return true, nil
}

// recordValue reads a native value of an entity record.
func (m *mirror) recordValue(id, native string) (float64, error) {
	rec, ok := m.storage.Lookup(id)
	if !ok {
		return 0, &EntityError{Kind: "entity", ID: id}
	}
	v, ok := rec.Values[native]
	if !ok {
		return 0, &AttributeError{Calculator: m.name, Name: string(rec.Kind) + "." + native}
	}
	return v, nil
}

// setRecordValue writes a native value of an entity record. Only attributes
// the record was seeded with may be written.
func (m *mirror) setRecordValue(id, native string, v float64) error {
	rec, ok := m.storage.Lookup(id)
	if !ok {
		return &EntityError{Kind: "entity", ID: id}
	}
	if _, ok := rec.Values[native]; !ok {
		return &AttributeError{Calculator: m.name, Name: string(rec.Kind) + "." + native}
	}
	rec.Values[native] = v
	m.logger.Debug("value set", "kind", rec.Kind, "id", id, "attribute", native, "value", v)
	return nil
}

// setter is the per-label write path BulkUpdate routes into.
type setter interface {
	set(label string, v float64, translate bool) error
	setInstrument(label string, v float64, translate bool) error
}

func bulkUpdate(logger *slog.Logger, r router, s setter, labels []string, values []float64, external bool) ([]string, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("%w: %d labels, %d values", ErrLengthMismatch, len(labels), len(values))
	}
	var unrecognized []string
	for i, label := range labels {
		var err error
		switch r.classify(label, external) {
		case familySample:
			err = s.set(label, values[i], external)
		case familyInstrument:
			err = s.setInstrument(label, values[i], external)
		default:
			logger.Warn("bulk update label not recognised", "label", label)
			unrecognized = append(unrecognized, label)
			continue
		}
		if err != nil {
			return unrecognized, fmt.Errorf("updating %s: %w", label, err)
		}
	}
	return unrecognized, nil
}
