package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Item is a repeating multilayer: its layers are stacked repetitions times.
type Item struct {
	id          string
	name        string
	layers      *Layers
	repetitions *Parameter
	iface       Interface
}

// NewItem wraps an existing layer collection and repetitions parameter.
func NewItem(layers *Layers, repetitions *Parameter, name string) *Item {
	return &Item{
		id:          uuid.New().String(),
		name:        name,
		layers:      layers,
		repetitions: repetitions,
	}
}

// DefaultItem holds the default layers once.
func DefaultItem() *Item {
	return NewItem(DefaultLayers(), newDefaultParameter(FieldRepetitions), DefaultItemName)
}

// ItemFromPars builds an item repeating layers the given number of times.
func ItemFromPars(layers *Layers, repetitions float64, name string) (*Item, error) {
	if layers == nil {
		layers = DefaultLayers()
	}
	r, err := parameterFromDefault(FieldRepetitions, repetitions)
	if err != nil {
		return nil, err
	}
	return NewItem(layers, r, name), nil
}

func (it *Item) ID() string              { return it.id }
func (it *Item) Name() string            { return it.name }
func (it *Item) Repetitions() *Parameter { return it.repetitions }

// Layers returns the layer collection. Changing it directly bypasses the
// mirror; use AddLayer, DuplicateLayer and RemoveLayer on attached items.
func (it *Item) Layers() *Layers { return it.layers }

// Interface returns the interface the item is mirrored into, if any.
func (it *Item) Interface() Interface { return it.iface }

// SetInterface mirrors the item, its layers and their materials into iface.
func (it *Item) SetInterface(iface Interface) error {
	if iface == nil {
		detachItem(it)
		return nil
	}
	return newRegistrar(iface, true).item(it)
}

// AddLayer appends layers to the item. If the mirror rejects one of them the
// item is left as it was.
func (it *Item) AddLayer(layers ...*Layer) error {
	n := it.layers.Len()
	it.layers.Append(layers...)
	if it.iface == nil {
		return nil
	}
	r := newRegistrar(it.iface, false)
	for k, l := range layers {
		if err := it.link(r, l); err != nil {
			it.layers.truncate(n)
			for j := k - 1; j >= 0; j-- {
				err = errors.Join(err, it.iface.RemoveLayerFromItem(layers[j].id, it.id, n+j))
			}
			return err
		}
	}
	return nil
}

// DuplicateLayer appends a deep copy of the layer at index i.
func (it *Item) DuplicateLayer(i int) (*Layer, error) {
	dup, err := it.layers.Duplicate(i)
	if err != nil {
		return nil, err
	}
	if it.iface != nil {
		if err := it.link(newRegistrar(it.iface, false), dup); err != nil {
			it.layers.truncate(it.layers.Len() - 1)
			detachLayer(dup)
			return nil, err
		}
	}
	return dup, nil
}

// RemoveLayer deletes the layer at index i from the item.
func (it *Item) RemoveLayer(i int) error {
	l, err := it.layers.Remove(i)
	if err != nil {
		return err
	}
	if it.iface == nil {
		return nil
	}
	if err := it.iface.RemoveLayerFromItem(l.id, it.id, i); err != nil {
		it.layers.insert(i, l)
		return fmt.Errorf("removing layer %s from item %s: %w", l.name, it.name, err)
	}
	return nil
}

func (it *Item) link(r *registrar, l *Layer) error {
	if err := r.layer(l); err != nil {
		return err
	}
	if err := it.iface.AddLayerToItem(l.id, it.id); err != nil {
		return fmt.Errorf("adding layer %s to item %s: %w", l.name, it.name, err)
	}
	return nil
}

func (it *Item) fields() []field {
	return []field{{FieldRepetitions, it.repetitions}}
}

func (it *Item) clone(memo *cloneMemo) *Item {
	return NewItem(it.layers.clone(memo), it.repetitions.clone(), it.name)
}

func (it *Item) node() *yamlNode {
	return mapping(
		entry{it.name, mapping(
			entry{FieldRepetitions, scalar(fmt.Sprintf("%.1f", it.repetitions.value))},
			entry{"layers", it.layers.node()},
		)},
	)
}

// String renders the item as YAML.
func (it *Item) String() string { return render(it.node()) }
