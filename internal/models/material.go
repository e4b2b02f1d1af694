package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Material is a named pair of real and imaginary scattering length densities.
// A material may be shared by several layers.
type Material struct {
	id    string
	name  string
	sld   *Parameter
	isld  *Parameter
	iface Interface
}

// NewMaterial wraps existing parameters.
func NewMaterial(sld, isld *Parameter, name string) *Material {
	return &Material{
		id:   uuid.New().String(),
		name: name,
		sld:  sld,
		isld: isld,
	}
}

// DefaultMaterial builds a material from the built-in defaults.
func DefaultMaterial() *Material {
	return NewMaterial(newDefaultParameter(FieldSLD), newDefaultParameter(FieldISLD), DefaultMaterialName)
}

// MaterialFromPars builds a material from known values.
func MaterialFromPars(sld, isld float64, name string) (*Material, error) {
	s, err := parameterFromDefault(FieldSLD, sld)
	if err != nil {
		return nil, err
	}
	i, err := parameterFromDefault(FieldISLD, isld)
	if err != nil {
		return nil, err
	}
	return NewMaterial(s, i, name), nil
}

func (m *Material) ID() string       { return m.id }
func (m *Material) Name() string     { return m.name }
func (m *Material) SLD() *Parameter  { return m.sld }
func (m *Material) ISLD() *Parameter { return m.isld }

// Interface returns the interface the material is mirrored into, if any.
func (m *Material) Interface() Interface { return m.iface }

// SetInterface mirrors the material into iface.
func (m *Material) SetInterface(iface Interface) error {
	if iface == nil {
		unbind(m.fields())
		m.iface = nil
		return nil
	}
	return newRegistrar(iface, true).material(m)
}

func (m *Material) fields() []field {
	return []field{{FieldSLD, m.sld}, {FieldISLD, m.isld}}
}

func (m *Material) clone(memo *cloneMemo) *Material {
	if c, ok := memo.materials[m]; ok {
		return c
	}
	c := NewMaterial(m.sld.clone(), m.isld.clone(), m.name)
	memo.materials[m] = c
	return c
}

func (m *Material) node() *yamlNode {
	return mapping(
		entry{m.name, mapping(
			entry{FieldSLD, scalar(fmt.Sprintf("%.3fe-6 %s", m.sld.value, m.sld.unit))},
			entry{FieldISLD, scalar(fmt.Sprintf("%.3fe-6 %s", m.isld.value, m.isld.unit))},
		)},
	)
}

// String renders the material as YAML.
func (m *Material) String() string { return render(m.node()) }
