package models

import "slices"

// element is what a Collection can hold: an identified, deep-copyable entity.
type element[T any] interface {
	ID() string
	Name() string
	clone(memo *cloneMemo) T
	node() *yamlNode
}

// cloneMemo preserves sharing inside a deep copy: a material used by two
// layers of the source is used by both copied layers.
type cloneMemo struct {
	materials map[*Material]*Material
	layers    map[*Layer]*Layer
}

func newCloneMemo() *cloneMemo {
	return &cloneMemo{
		materials: make(map[*Material]*Material),
		layers:    make(map[*Layer]*Layer),
	}
}

// Collection is an ordered, mutable sequence of elements. Order is the
// stacking order of the sample.
type Collection[T element[T]] struct {
	name  string
	elems []T
}

// Layers is the ordered stack of layers of an item.
type Layers = Collection[*Layer]

// Structure is the ordered stack of items of a model.
type Structure = Collection[*Item]

// NewLayers builds a named layer collection.
func NewLayers(name string, layers ...*Layer) *Layers {
	return &Layers{name: name, elems: append([]*Layer(nil), layers...)}
}

// DefaultLayers holds a single default layer.
func DefaultLayers() *Layers {
	return NewLayers(DefaultLayersName, DefaultLayer())
}

// NewStructure builds a named item collection.
func NewStructure(name string, items ...*Item) *Structure {
	return &Structure{name: name, elems: append([]*Item(nil), items...)}
}

// DefaultStructure holds a single default item.
func DefaultStructure() *Structure {
	return NewStructure(DefaultStructureName, DefaultItem())
}

func (c *Collection[T]) Name() string { return c.name }
func (c *Collection[T]) Len() int     { return len(c.elems) }

// All returns a copy of the elements in order.
func (c *Collection[T]) All() []T {
	return append([]T(nil), c.elems...)
}

// At returns the element at index i.
func (c *Collection[T]) At(i int) (T, error) {
	if err := c.checkIndex(i); err != nil {
		var zero T
		return zero, err
	}
	return c.elems[i], nil
}

// IndexOf returns the position of the element with the given ID, or -1.
func (c *Collection[T]) IndexOf(id string) int {
	for i, e := range c.elems {
		if e.ID() == id {
			return i
		}
	}
	return -1
}

// Append adds elements at the end.
func (c *Collection[T]) Append(elems ...T) {
	c.elems = append(c.elems, elems...)
}

// Duplicate appends a deep copy of the element at index i and returns it. The
// copy has fresh identities throughout and shares nothing with the source.
func (c *Collection[T]) Duplicate(i int) (T, error) {
	src, err := c.At(i)
	if err != nil {
		return src, err
	}
	dup := src.clone(newCloneMemo())
	c.elems = append(c.elems, dup)
	return dup, nil
}

// Remove deletes the element at index i and returns it.
func (c *Collection[T]) Remove(i int) (T, error) {
	e, err := c.At(i)
	if err != nil {
		return e, err
	}
	c.elems = append(c.elems[:i], c.elems[i+1:]...)
	return e, nil
}

// insert puts e at index i. It undoes a Remove.
func (c *Collection[T]) insert(i int, e T) {
	c.elems = slices.Insert(c.elems, i, e)
}

// truncate keeps the first n elements. It undoes an Append or Duplicate.
func (c *Collection[T]) truncate(n int) {
	clear(c.elems[n:])
	c.elems = c.elems[:n]
}

func (c *Collection[T]) checkIndex(i int) error {
	if i < 0 || i >= len(c.elems) {
		return &IndexError{Collection: c.name, Index: i, Len: len(c.elems)}
	}
	return nil
}

func (c *Collection[T]) clone(memo *cloneMemo) *Collection[T] {
	out := &Collection[T]{name: c.name, elems: make([]T, len(c.elems))}
	for i, e := range c.elems {
		out.elems[i] = e.clone(memo)
	}
	return out
}

func (c *Collection[T]) node() *yamlNode {
	items := make([]*yamlNode, len(c.elems))
	for i, e := range c.elems {
		items[i] = e.node()
	}
	return mapping(entry{c.name, sequence(items...)})
}

// String renders the collection as YAML.
func (c *Collection[T]) String() string { return render(c.node()) }
