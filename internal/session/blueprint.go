package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/refl-model/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrBlueprint wraps every blueprint validation failure.
var ErrBlueprint = errors.New("invalid blueprint")

// MaterialSpec describes a material. Omitted values take the parameter defaults.
type MaterialSpec struct {
	Name string   `json:"name,omitempty" yaml:"name,omitempty"`
	SLD  *float64 `json:"sld,omitempty" yaml:"sld,omitempty"`
	ISLD *float64 `json:"isld,omitempty" yaml:"isld,omitempty"`
}

// LayerSpec describes a layer by the key of its material.
type LayerSpec struct {
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Material  string   `json:"material" yaml:"material"`
	Thickness *float64 `json:"thickness,omitempty" yaml:"thickness,omitempty"`
	Roughness *float64 `json:"roughness,omitempty" yaml:"roughness,omitempty"`
}

// ItemSpec describes an item by the keys of its layers, top first.
type ItemSpec struct {
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Layers      []string `json:"layers" yaml:"layers"`
	Repetitions *float64 `json:"repetitions,omitempty" yaml:"repetitions,omitempty"`
}

// Blueprint is the serialisable recipe of a model. Elements are declared once
// under a key and referenced by that key, so two layers naming the same
// material share one Material.
type Blueprint struct {
	Name       string                  `json:"name,omitempty" yaml:"name,omitempty"`
	Scale      *float64                `json:"scale,omitempty" yaml:"scale,omitempty"`
	Background *float64                `json:"background,omitempty" yaml:"background,omitempty"`
	Resolution *float64                `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Materials  map[string]MaterialSpec `json:"materials,omitempty" yaml:"materials,omitempty"`
	Layers     map[string]LayerSpec    `json:"layers,omitempty" yaml:"layers,omitempty"`
	Items      map[string]ItemSpec     `json:"items,omitempty" yaml:"items,omitempty"`
	// Structure lists item keys, top first. Empty means the default structure.
	Structure []string `json:"structure,omitempty" yaml:"structure,omitempty"`
}

// DecodeBlueprintYAML reads a blueprint document. Unknown keys are rejected.
func DecodeBlueprintYAML(r io.Reader) (*Blueprint, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var bp Blueprint
	if err := dec.Decode(&bp); err != nil {
		if errors.Is(err, io.EOF) {
			return &bp, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBlueprint, err)
	}
	return &bp, nil
}

// ParseBlueprintYAML is DecodeBlueprintYAML over a byte slice.
func ParseBlueprintYAML(data []byte) (*Blueprint, error) {
	return DecodeBlueprintYAML(bytes.NewReader(data))
}

func valueOr(v *float64, field string) float64 {
	if v != nil {
		return *v
	}
	def, _ := models.Default(field)
	return def.Value
}

func nameOr(name, key string) string {
	if name != "" {
		return name
	}
	return key
}

// Build turns the blueprint into a detached model.
func (bp *Blueprint) Build() (*models.Model, error) {
	if len(bp.Structure) == 0 {
		if len(bp.Items) > 0 {
			return nil, fmt.Errorf("%w: items declared but structure is empty", ErrBlueprint)
		}
		return models.ModelFromPars(nil,
			valueOr(bp.Scale, models.FieldScale),
			valueOr(bp.Background, models.FieldBackground),
			valueOr(bp.Resolution, models.FieldResolution),
			nameOr(bp.Name, models.DefaultModelName))
	}

	materials := make(map[string]*models.Material, len(bp.Materials))
	for key, spec := range bp.Materials {
		m, err := models.MaterialFromPars(
			valueOr(spec.SLD, models.FieldSLD),
			valueOr(spec.ISLD, models.FieldISLD),
			nameOr(spec.Name, key))
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", key, err)
		}
		materials[key] = m
	}

	layers := make(map[string]*models.Layer, len(bp.Layers))
	for key, spec := range bp.Layers {
		mat, ok := materials[spec.Material]
		if !ok {
			return nil, fmt.Errorf("%w: layer %q references unknown material %q", ErrBlueprint, key, spec.Material)
		}
		l, err := models.LayerFromPars(mat,
			valueOr(spec.Thickness, models.FieldThickness),
			valueOr(spec.Roughness, models.FieldRoughness),
			nameOr(spec.Name, key))
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", key, err)
		}
		layers[key] = l
	}

	items := make(map[string]*models.Item, len(bp.Items))
	for key, spec := range bp.Items {
		if len(spec.Layers) == 0 {
			return nil, fmt.Errorf("%w: item %q has no layers", ErrBlueprint, key)
		}
		stack := models.NewLayers(nameOr(spec.Name, key))
		for _, lk := range spec.Layers {
			l, ok := layers[lk]
			if !ok {
				return nil, fmt.Errorf("%w: item %q references unknown layer %q", ErrBlueprint, key, lk)
			}
			stack.Append(l)
		}
		it, err := models.ItemFromPars(stack, valueOr(spec.Repetitions, models.FieldRepetitions), nameOr(spec.Name, key))
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", key, err)
		}
		items[key] = it
	}

	structure := models.NewStructure(nameOr(bp.Name, models.DefaultModelName) + " structure")
	seen := make(map[string]bool, len(bp.Structure))
	for _, key := range bp.Structure {
		it, ok := items[key]
		if !ok {
			return nil, fmt.Errorf("%w: structure references unknown item %q", ErrBlueprint, key)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: item %q appears twice in the structure", ErrBlueprint, key)
		}
		seen[key] = true
		structure.Append(it)
	}

	return models.ModelFromPars(structure,
		valueOr(bp.Scale, models.FieldScale),
		valueOr(bp.Background, models.FieldBackground),
		valueOr(bp.Resolution, models.FieldResolution),
		nameOr(bp.Name, models.DefaultModelName))
}
