package models

import "strings"

// Interface is the calculator-side bookkeeping an attached element keeps in
// sync. Entities are addressed by their ID; calculators.Factory implements it.
type Interface interface {
	CreateMaterial(id, name string) error
	CreateLayer(id, name string) error
	CreateItem(id, name string) error
	CreateModel(id, name string) error
	AssignMaterialToLayer(materialID, layerID string) error
	AddLayerToItem(layerID, itemID string) error
	// RemoveLayerFromItem drops the layer reference at position index of the
	// item. Items may repeat a layer, so the position is what identifies it.
	RemoveLayerFromItem(layerID, itemID string, index int) error
	AddItem(itemID, modelID string) error
	// RemoveItem detaches the item from the model and reports whether its
	// record was dropped. A record another model still uses is kept.
	RemoveItem(itemID, modelID string) (dropped bool, err error)

	// SetValue receives sample-level parameters (materials, layers, items).
	SetValue(label string, value float64) error
	// SetInstrumentValue receives the model-level parameters.
	SetInstrumentValue(label string, value float64) error
}

const labelSep = "/"

// Label qualifies a field name with the ID of the entity owning it.
func Label(id, field string) string {
	return id + labelSep + field
}

// SplitLabel is the inverse of Label. Unqualified labels return an empty id.
func SplitLabel(label string) (id, field string) {
	i := strings.LastIndex(label, labelSep)
	if i < 0 {
		return "", label
	}
	return label[:i], label[i+1:]
}
