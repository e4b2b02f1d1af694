package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Layer is a slab of a material with a thickness and an upper interfacial
// roughness. The material is a shared reference.
type Layer struct {
	id        string
	name      string
	material  *Material
	thickness *Parameter
	roughness *Parameter
	iface     Interface
}

// NewLayer wraps existing parameters.
func NewLayer(material *Material, thickness, roughness *Parameter, name string) *Layer {
	return &Layer{
		id:        uuid.New().String(),
		name:      name,
		material:  material,
		thickness: thickness,
		roughness: roughness,
	}
}

// DefaultLayer builds a layer of the default material from the built-in defaults.
func DefaultLayer() *Layer {
	return NewLayer(DefaultMaterial(), newDefaultParameter(FieldThickness), newDefaultParameter(FieldRoughness), DefaultLayerName)
}

// LayerFromPars builds a layer of material with known thickness and roughness
// in angstrom.
func LayerFromPars(material *Material, thickness, roughness float64, name string) (*Layer, error) {
	if material == nil {
		material = DefaultMaterial()
	}
	t, err := parameterFromDefault(FieldThickness, thickness)
	if err != nil {
		return nil, err
	}
	r, err := parameterFromDefault(FieldRoughness, roughness)
	if err != nil {
		return nil, err
	}
	return NewLayer(material, t, r, name), nil
}

func (l *Layer) ID() string            { return l.id }
func (l *Layer) Name() string          { return l.name }
func (l *Layer) Material() *Material   { return l.material }
func (l *Layer) Thickness() *Parameter { return l.thickness }
func (l *Layer) Roughness() *Parameter { return l.roughness }

// Interface returns the interface the layer is mirrored into, if any.
func (l *Layer) Interface() Interface { return l.iface }

// SetInterface mirrors the layer and its material into iface.
func (l *Layer) SetInterface(iface Interface) error {
	if iface == nil {
		detachLayer(l)
		return nil
	}
	return newRegistrar(iface, true).layer(l)
}

// AssignMaterial replaces the layer's material, re-linking the mirror when the
// layer is attached.
func (l *Layer) AssignMaterial(m *Material) error {
	l.material = m
	if l.iface == nil {
		return nil
	}
	if err := newRegistrar(l.iface, false).material(m); err != nil {
		return err
	}
	return l.iface.AssignMaterialToLayer(m.id, l.id)
}

func (l *Layer) fields() []field {
	return []field{{FieldThickness, l.thickness}, {FieldRoughness, l.roughness}}
}

func (l *Layer) clone(memo *cloneMemo) *Layer {
	if c, ok := memo.layers[l]; ok {
		return c
	}
	c := NewLayer(l.material.clone(memo), l.thickness.clone(), l.roughness.clone(), l.name)
	memo.layers[l] = c
	return c
}

func (l *Layer) node() *yamlNode {
	return mapping(
		entry{l.name, mapping(
			entry{"material", l.material.node()},
			entry{FieldThickness, scalar(fmt.Sprintf("%.3f %s", l.thickness.value, l.thickness.unit))},
			entry{FieldRoughness, scalar(fmt.Sprintf("%.3f %s", l.roughness.value, l.roughness.unit))},
		)},
	)
}

// String renders the layer as YAML.
func (l *Layer) String() string { return render(l.node()) }
