package calculators

import (
	"fmt"
	"maps"
	"slices"
)

// Kind names an entity type in the storage mirror.
type Kind string

const (
	KindMaterial Kind = "material"
	KindLayer    Kind = "layer"
	KindItem     Kind = "item"
	KindModel    Kind = "model"
)

// Kinds lists every kind in dependency order.
var Kinds = []Kind{KindMaterial, KindLayer, KindItem, KindModel}

// Record is the calculator-native copy of one domain entity. Values are keyed
// by native attribute name; Children holds the IDs of referenced records in
// order (the material of a layer, the layers of an item, the items of a model).
type Record struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Kind     Kind               `json:"kind"`
	Values   map[string]float64 `json:"values"`
	Children []string           `json:"children,omitempty"`
}

// Storage mirrors the sample model for a calculator: a list of records per
// kind, deduplicated by identity. It is not safe for concurrent use.
type Storage struct {
	records map[Kind][]*Record
	byID    map[string]*Record
}

// NewStorage creates an empty mirror.
func NewStorage() *Storage {
	s := &Storage{}
	s.Reset()
	return s
}

// Reset drops every record.
func (s *Storage) Reset() {
	s.records = make(map[Kind][]*Record, len(Kinds))
	s.byID = make(map[string]*Record)
}

// Add inserts a record seeded with values and reports whether it was new. An
// existing record keeps its values, takes the new name and loses its children,
// so that re-registering an entity rebuilds its links instead of doubling them.
func (s *Storage) Add(kind Kind, id, name string, values map[string]float64) (*Record, bool) {
	if rec, ok := s.byID[id]; ok {
		rec.Name = name
		rec.Children = nil
		return rec, false
	}
	rec := &Record{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Values: maps.Clone(values),
	}
	if rec.Values == nil {
		rec.Values = make(map[string]float64)
	}
	s.records[kind] = append(s.records[kind], rec)
	s.byID[id] = rec
	return rec, true
}

// Get returns the record of the given kind and ID.
func (s *Storage) Get(kind Kind, id string) (*Record, error) {
	rec, ok := s.byID[id]
	if !ok || rec.Kind != kind {
		return nil, &EntityError{Kind: kind, ID: id}
	}
	return rec, nil
}

// Lookup returns the record with the given ID whatever its kind.
func (s *Storage) Lookup(id string) (*Record, bool) {
	rec, ok := s.byID[id]
	return rec, ok
}

// Remove deletes a record. References to it from other records are dropped.
func (s *Storage) Remove(kind Kind, id string) error {
	rec, err := s.Get(kind, id)
	if err != nil {
		return err
	}
	s.records[kind] = slices.DeleteFunc(s.records[kind], func(r *Record) bool { return r == rec })
	delete(s.byID, id)
	for _, other := range s.byID {
		other.Children = slices.DeleteFunc(other.Children, func(c string) bool { return c == id })
	}
	return nil
}

// Len returns the number of records of a kind.
func (s *Storage) Len(kind Kind) int {
	return len(s.records[kind])
}

// Records returns the records of a kind in insertion order.
func (s *Storage) Records(kind Kind) []*Record {
	return slices.Clone(s.records[kind])
}

// Counts returns the number of records per kind.
func (s *Storage) Counts() map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = len(s.records[k])
	}
	return out
}

// Referenced reports whether any record lists id as a child.
func (s *Storage) Referenced(id string) bool {
	for _, rec := range s.byID {
		if slices.Contains(rec.Children, id) {
			return true
		}
	}
	return false
}

func (s *Storage) String() string {
	return fmt.Sprintf("storage(%v)", s.Counts())
}
