// Package models contains the domain types of a reflectometry sample model.
//
// Materials, layers and items are named bundles of bounded parameters. They are
// stacked into a Structure which, together with the instrumental scale,
// background and resolution, forms a Model. A Model may be attached to an
// Interface, in which case every structural change and every parameter change
// is mirrored into the calculator behind that interface.
package models

import (
	"fmt"
	"math"
)

// ParameterDefault describes the built-in metadata of a named parameter.
type ParameterDefault struct {
	Description string
	URL         string
	Value       float64
	Unit        string
	Min         float64
	Max         float64
	Fixed       bool
}

// Parameter is a bounded numeric value with a fixed/free flag and units.
type Parameter struct {
	name        string
	value       float64
	min         float64
	max         float64
	fixed       bool
	unit        string
	description string
	url         string

	// notify pushes a new value to the calculator the owner is attached to.
	notify func(float64) error
}

// NewParameter creates a parameter holding value, taking bounds, units and the
// fixed flag from def. The value must be a number inside [def.Min, def.Max].
func NewParameter(name string, value float64, def ParameterDefault) (*Parameter, error) {
	p := &Parameter{
		name:        name,
		min:         def.Min,
		max:         def.Max,
		fixed:       def.Fixed,
		unit:        def.Unit,
		description: def.Description,
		url:         def.URL,
	}
	if err := p.check(value); err != nil {
		return nil, err
	}
	p.value = value
	return p, nil
}

// newDefaultParameter builds the named parameter from the defaults table.
// The built-in defaults always lie inside their own bounds.
func newDefaultParameter(name string) *Parameter {
	def := defaults[name]
	p, err := NewParameter(name, def.Value, def)
	if err != nil {
		panic(fmt.Sprintf("models: invalid built-in default for %s: %v", name, err))
	}
	return p
}

// parameterFromDefault builds the named parameter with a caller-supplied value,
// reusing the default bounds, units and fixed flag.
func parameterFromDefault(name string, value float64) (*Parameter, error) {
	return NewParameter(name, value, defaults[name])
}

func (p *Parameter) check(v float64) error {
	if math.IsNaN(v) || v < p.min || v > p.max {
		return &ParameterError{Name: p.name, Value: v, Min: p.min, Max: p.max}
	}
	return nil
}

// Validate reports whether v lies inside the bounds without setting it.
func (p *Parameter) Validate(v float64) error { return p.check(v) }

// Name returns the display name.
func (p *Parameter) Name() string { return p.name }

// Value returns the current value.
func (p *Parameter) Value() float64 { return p.value }

// Min returns the lower bound.
func (p *Parameter) Min() float64 { return p.min }

// Max returns the upper bound.
func (p *Parameter) Max() float64 { return p.max }

// Fixed reports whether the parameter is excluded from fitting.
func (p *Parameter) Fixed() bool { return p.fixed }

// SetFixed marks the parameter fixed or free.
func (p *Parameter) SetFixed(fixed bool) { p.fixed = fixed }

// Unit returns the unit string.
func (p *Parameter) Unit() string { return p.unit }

// Description returns the physical description of the parameter.
func (p *Parameter) Description() string { return p.description }

// URL returns the provenance of the default value.
func (p *Parameter) URL() string { return p.url }

// SetValue validates v against the bounds, stores it and propagates it to the
// attached calculator. A failed propagation restores the previous value.
func (p *Parameter) SetValue(v float64) error {
	if err := p.check(v); err != nil {
		return err
	}
	old := p.value
	p.value = v
	if p.notify != nil {
		if err := p.notify(v); err != nil {
			p.value = old
			return fmt.Errorf("propagating %s: %w", p.name, err)
		}
	}
	return nil
}

// String formats the value with its unit.
func (p *Parameter) String() string {
	return fmt.Sprintf("%.3f %s", p.value, p.unit)
}

// clone copies the parameter without its calculator binding.
func (p *Parameter) clone() *Parameter {
	c := *p
	c.notify = nil
	return &c
}
