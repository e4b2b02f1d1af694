package models

import "fmt"

// field pairs a parameter with the abstract name it is mirrored under.
type field struct {
	name  string
	param *Parameter
}

// registrar walks an element tree and mirrors it into an Interface. Every
// identity is registered at most once per walk; with full unset, entities
// already attached to the same interface are skipped entirely.
type registrar struct {
	iface Interface
	full  bool
	seen  map[string]struct{}
}

func newRegistrar(iface Interface, full bool) *registrar {
	return &registrar{iface: iface, full: full, seen: make(map[string]struct{})}
}

func (r *registrar) first(id string, attached Interface) bool {
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	if !r.full && attached != nil && attached == r.iface {
		return false
	}
	return true
}

func (r *registrar) material(m *Material) error {
	if !r.first(m.id, m.iface) {
		return nil
	}
	if err := r.iface.CreateMaterial(m.id, m.name); err != nil {
		return fmt.Errorf("creating material %s: %w", m.name, err)
	}
	m.iface = r.iface
	return r.bind(m.id, m.fields(), r.iface.SetValue)
}

func (r *registrar) layer(l *Layer) error {
	if !r.first(l.id, l.iface) {
		return nil
	}
	if err := r.iface.CreateLayer(l.id, l.name); err != nil {
		return fmt.Errorf("creating layer %s: %w", l.name, err)
	}
	if err := r.material(l.material); err != nil {
		return err
	}
	if err := r.iface.AssignMaterialToLayer(l.material.id, l.id); err != nil {
		return fmt.Errorf("assigning material to layer %s: %w", l.name, err)
	}
	l.iface = r.iface
	return r.bind(l.id, l.fields(), r.iface.SetValue)
}

func (r *registrar) item(it *Item) error {
	if !r.first(it.id, it.iface) {
		return nil
	}
	if err := r.iface.CreateItem(it.id, it.name); err != nil {
		return fmt.Errorf("creating item %s: %w", it.name, err)
	}
	for _, l := range it.layers.elems {
		if err := r.layer(l); err != nil {
			return err
		}
		if err := r.iface.AddLayerToItem(l.id, it.id); err != nil {
			return fmt.Errorf("adding layer %s to item %s: %w", l.name, it.name, err)
		}
	}
	it.iface = r.iface
	return r.bind(it.id, it.fields(), r.iface.SetValue)
}

func (r *registrar) model(m *Model) error {
	if err := r.iface.CreateModel(m.id, m.name); err != nil {
		return fmt.Errorf("creating model %s: %w", m.name, err)
	}
	for _, it := range m.structure.elems {
		if err := r.item(it); err != nil {
			return err
		}
		if err := r.iface.AddItem(it.id, m.id); err != nil {
			return fmt.Errorf("adding item %s to model %s: %w", it.name, m.name, err)
		}
	}
	return r.bind(m.id, m.fields(), r.iface.SetInstrumentValue)
}

// bind pushes the current values and routes later changes through set.
func (r *registrar) bind(id string, fields []field, set func(string, float64) error) error {
	for _, f := range fields {
		label := Label(id, f.name)
		if err := set(label, f.param.value); err != nil {
			return fmt.Errorf("setting %s: %w", label, err)
		}
		f.param.notify = func(v float64) error { return set(label, v) }
	}
	return nil
}

func unbind(fields []field) {
	for _, f := range fields {
		f.param.notify = nil
	}
}

// detachItem releases an item and, recursively, its layers and materials.
func detachItem(it *Item) {
	for _, l := range it.layers.elems {
		detachLayer(l)
	}
	unbind(it.fields())
	it.iface = nil
}

func detachLayer(l *Layer) {
	unbind(l.material.fields())
	l.material.iface = nil
	unbind(l.fields())
	l.iface = nil
}
