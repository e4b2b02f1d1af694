package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Model is the top-level aggregate: a structure plus the instrumental scale,
// background and resolution. The interface it is attached to is shared, not
// owned; the same interface may serve several models.
type Model struct {
	id         string
	name       string
	structure  *Structure
	scale      *Parameter
	background *Parameter
	resolution *Parameter
	iface      Interface
}

// NewModel wraps an existing structure and parameters.
func NewModel(structure *Structure, scale, background, resolution *Parameter, name string) *Model {
	return &Model{
		id:         uuid.New().String(),
		name:       name,
		structure:  structure,
		scale:      scale,
		background: background,
		resolution: resolution,
	}
}

// DefaultModel builds a model of the default structure.
func DefaultModel() *Model {
	return NewModel(
		DefaultStructure(),
		newDefaultParameter(FieldScale),
		newDefaultParameter(FieldBackground),
		newDefaultParameter(FieldResolution),
		DefaultModelName,
	)
}

// ModelFromPars builds a model with known instrumental values. Resolution is
// the percentage dq/q.
func ModelFromPars(structure *Structure, scale, background, resolution float64, name string) (*Model, error) {
	if structure == nil {
		structure = DefaultStructure()
	}
	s, err := parameterFromDefault(FieldScale, scale)
	if err != nil {
		return nil, err
	}
	b, err := parameterFromDefault(FieldBackground, background)
	if err != nil {
		return nil, err
	}
	r, err := parameterFromDefault(FieldResolution, resolution)
	if err != nil {
		return nil, err
	}
	return NewModel(structure, s, b, r, name), nil
}

func (m *Model) ID() string              { return m.id }
func (m *Model) Name() string            { return m.name }
func (m *Model) Structure() *Structure   { return m.structure }
func (m *Model) Scale() *Parameter       { return m.scale }
func (m *Model) Background() *Parameter  { return m.background }
func (m *Model) Resolution() *Parameter  { return m.resolution }
func (m *Model) Interface() Interface    { return m.iface }

// SetInterface attaches the model to iface and mirrors the whole tree into it.
// Passing the interface the model already uses regenerates the mirror, which
// is what a calculator switch needs. A nil iface detaches the model.
func (m *Model) SetInterface(iface Interface) error {
	if iface == nil {
		for _, it := range m.structure.elems {
			detachItem(it)
		}
		unbind(m.fields())
		m.iface = nil
		return nil
	}
	m.iface = iface
	return newRegistrar(iface, true).model(m)
}

// AddItem appends items to the structure. Attached, each item gains exactly
// one mirror record; its layers and materials are mirrored only if new. If
// the mirror rejects an item the structure is left as it was.
func (m *Model) AddItem(items ...*Item) error {
	for _, it := range items {
		if m.structure.IndexOf(it.id) >= 0 {
			return fmt.Errorf("item %s: %w", it.name, ErrAlreadyMember)
		}
	}
	n := m.structure.Len()
	m.structure.Append(items...)
	if m.iface == nil {
		return nil
	}
	r := newRegistrar(m.iface, false)
	for k, it := range items {
		attached := it.iface == m.iface
		if err := m.link(r, it); err != nil {
			m.structure.truncate(n)
			if !attached {
				unbind(it.fields())
				it.iface = nil
			}
			for j := k - 1; j >= 0; j-- {
				err = errors.Join(err, m.release(items[j]))
			}
			return err
		}
	}
	return nil
}

// DuplicateItem appends a deep copy of the item at index i and returns it.
func (m *Model) DuplicateItem(i int) (*Item, error) {
	dup, err := m.structure.Duplicate(i)
	if err != nil {
		return nil, err
	}
	if m.iface != nil {
		if err := m.link(newRegistrar(m.iface, false), dup); err != nil {
			m.structure.truncate(m.structure.Len() - 1)
			detachItem(dup)
			return nil, err
		}
	}
	return dup, nil
}

// RemoveItem deletes the item at index i from the structure and the mirror.
// Layers the item referenced stay mirrored since other items may share them.
// An item another model still uses keeps propagating its changes.
func (m *Model) RemoveItem(i int) error {
	it, err := m.structure.Remove(i)
	if err != nil {
		return err
	}
	if m.iface == nil {
		return nil
	}
	if err := m.release(it); err != nil {
		m.structure.insert(i, it)
		return err
	}
	return nil
}

// release detaches it from the model's mirror record and unbinds it once the
// mirror has dropped its record.
func (m *Model) release(it *Item) error {
	dropped, err := m.iface.RemoveItem(it.id, m.id)
	if err != nil {
		return fmt.Errorf("removing item %s: %w", it.name, err)
	}
	if dropped {
		unbind(it.fields())
		it.iface = nil
	}
	return nil
}

func (m *Model) link(r *registrar, it *Item) error {
	if err := r.item(it); err != nil {
		return err
	}
	if err := m.iface.AddItem(it.id, m.id); err != nil {
		return fmt.Errorf("adding item %s to model %s: %w", it.name, m.name, err)
	}
	return nil
}

func (m *Model) fields() []field {
	return []field{
		{FieldScale, m.scale},
		{FieldBackground, m.background},
		{FieldResolution, m.resolution},
	}
}

func (m *Model) node() *yamlNode {
	return mapping(
		entry{m.name, mapping(
			entry{FieldScale, scalar(fmt.Sprintf("%.3f", m.scale.value))},
			entry{FieldBackground, scalar(fmt.Sprintf("%.3e", m.background.value))},
			entry{FieldResolution, scalar(fmt.Sprintf("%.2f %s", m.resolution.value, m.resolution.unit))},
			entry{"sample", m.structure.node()},
		)},
	)
}

// String renders the model as YAML.
func (m *Model) String() string { return render(m.node()) }
