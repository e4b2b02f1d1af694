package calculators

import (
	"fmt"
	"log/slog"
)

// Factory holds the active adapter and forwards every call to it. Models are
// attached to the factory rather than to an adapter, so switching calculator
// only requires re-registering them.
type Factory struct {
	registry *Registry
	logger   *slog.Logger
	current  Adapter
	name     string
}

// NewFactory instantiates the registry's first template.
func NewFactory(registry *Registry, logger *slog.Logger) (*Factory, error) {
	if registry == nil {
		registry = GetGlobalRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	names := registry.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: registry is empty", ErrUnknownCalculator)
	}
	f := &Factory{registry: registry, logger: logger}
	if err := f.Switch(names[0]); err != nil {
		return nil, err
	}
	return f, nil
}

// Current returns the active adapter.
func (f *Factory) Current() Adapter { return f.current }

// CurrentName returns the registry name of the active adapter.
func (f *Factory) CurrentName() string { return f.name }

// Available lists the adapters the factory can switch to.
func (f *Factory) Available() []string { return f.registry.Names() }

// Switch replaces the active adapter with a fresh instance of the named
// template. The new adapter starts with empty storage; callers re-register
// their models.
func (f *Factory) Switch(name string) error {
	tmpl, err := f.registry.GetTemplateByName(name)
	if err != nil {
		return err
	}
	adapter, err := tmpl.New(f.logger)
	if err != nil {
		return fmt.Errorf("creating %s calculator: %w", tmpl.Name, err)
	}
	f.current = adapter
	f.name = tmpl.Name
	f.logger.Info("calculator selected", "calculator", tmpl.Name)
	return nil
}

func (f *Factory) ResetStorage() { f.current.ResetStorage() }

// SLDProfile forwards to the active adapter when it can compute profiles.
func (f *Factory) SLDProfile(modelID string) ([]float64, []float64, error) {
	p, ok := f.current.(Profiler)
	if !ok {
		return nil, nil, unsupported(f.name, "sld profile")
	}
	return p.SLDProfile(modelID)
}

func (f *Factory) GetHKL(x []float64) ([]Reflection, error) {
	h, ok := f.current.(HKLProvider)
	if !ok {
		return nil, unsupported(f.name, "hkl")
	}
	return h.GetHKL(x)
}

func (f *Factory) FitFunc(x []float64, modelID string) ([]float64, error) {
	return f.current.FitFunc(x, modelID)
}

func (f *Factory) BulkUpdate(labels []string, values []float64, external bool) ([]string, error) {
	return f.current.BulkUpdate(labels, values, external)
}

func (f *Factory) GetValue(label string) (float64, error) { return f.current.GetValue(label) }

func (f *Factory) GetInstrumentValue(label string) (float64, error) {
	return f.current.GetInstrumentValue(label)
}

func (f *Factory) SetValue(label string, v float64) error { return f.current.SetValue(label, v) }

func (f *Factory) SetInstrumentValue(label string, v float64) error {
	return f.current.SetInstrumentValue(label, v)
}

func (f *Factory) CreateMaterial(id, name string) error { return f.current.CreateMaterial(id, name) }
func (f *Factory) CreateLayer(id, name string) error    { return f.current.CreateLayer(id, name) }
func (f *Factory) CreateItem(id, name string) error     { return f.current.CreateItem(id, name) }
func (f *Factory) CreateModel(id, name string) error    { return f.current.CreateModel(id, name) }

func (f *Factory) AssignMaterialToLayer(materialID, layerID string) error {
	return f.current.AssignMaterialToLayer(materialID, layerID)
}

func (f *Factory) AddLayerToItem(layerID, itemID string) error {
	return f.current.AddLayerToItem(layerID, itemID)
}

func (f *Factory) RemoveLayerFromItem(layerID, itemID string, index int) error {
	return f.current.RemoveLayerFromItem(layerID, itemID, index)
}

func (f *Factory) AddItem(itemID, modelID string) error {
	return f.current.AddItem(itemID, modelID)
}

func (f *Factory) RemoveItem(itemID, modelID string) (bool, error) {
	return f.current.RemoveItem(itemID, modelID)
}
