// mock_interface.go - Recording implementation of models.Interface for testing
package testutil

import (
	"errors"
	"fmt"
	"sync"
)

// Call is one recorded interface invocation.
type Call struct {
	Method string
	Args   []string
}

// MockInterface implements models.Interface by recording every call and
// remembering the last value pushed for each label.
type MockInterface struct {
	mu      sync.Mutex
	calls   []Call
	values  map[string]float64
	created map[string]int
	fail    map[string]error
}

// NewMockInterface creates an empty recorder.
func NewMockInterface() *MockInterface {
	return &MockInterface{
		values:  make(map[string]float64),
		created: make(map[string]int),
		fail:    make(map[string]error),
	}
}

// FailOn makes every later call of method return err.
func (m *MockInterface) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = errors.New("mock failure")
	}
	m.fail[method] = err
}

func (m *MockInterface) record(method string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return m.fail[method]
}

func (m *MockInterface) create(kind, id, name string) error {
	if err := m.record("Create"+kind, id, name); err != nil {
		return err
	}
	m.mu.Lock()
	m.created[kind]++
	m.mu.Unlock()
	return nil
}

func (m *MockInterface) CreateMaterial(id, name string) error { return m.create("Material", id, name) }
func (m *MockInterface) CreateLayer(id, name string) error    { return m.create("Layer", id, name) }
func (m *MockInterface) CreateItem(id, name string) error     { return m.create("Item", id, name) }
func (m *MockInterface) CreateModel(id, name string) error    { return m.create("Model", id, name) }

func (m *MockInterface) AssignMaterialToLayer(materialID, layerID string) error {
	return m.record("AssignMaterialToLayer", materialID, layerID)
}

func (m *MockInterface) AddLayerToItem(layerID, itemID string) error {
	return m.record("AddLayerToItem", layerID, itemID)
}

func (m *MockInterface) RemoveLayerFromItem(layerID, itemID string, index int) error {
	return m.record("RemoveLayerFromItem", layerID, itemID, fmt.Sprint(index))
}

func (m *MockInterface) AddItem(itemID, modelID string) error {
	return m.record("AddItem", itemID, modelID)
}

// RemoveItem reports the record as dropped unless the call fails.
func (m *MockInterface) RemoveItem(itemID, modelID string) (bool, error) {
	if err := m.record("RemoveItem", itemID, modelID); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MockInterface) SetValue(label string, v float64) error {
	return m.set("SetValue", label, v)
}

func (m *MockInterface) SetInstrumentValue(label string, v float64) error {
	return m.set("SetInstrumentValue", label, v)
}

func (m *MockInterface) set(method, label string, v float64) error {
	if err := m.record(method, label, fmt.Sprint(v)); err != nil {
		return err
	}
	m.mu.Lock()
	m.values[label] = v
	m.mu.Unlock()
	return nil
}

// Value returns the last value pushed for label.
func (m *MockInterface) Value(label string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[label]
	return v, ok
}

// Created returns how many Create<kind> calls succeeded, e.g. Created("Item").
func (m *MockInterface) Created(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[kind]
}

// Calls returns the recorded calls, optionally filtered by method.
func (m *MockInterface) Calls(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets every recorded call and value.
func (m *MockInterface) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.values = make(map[string]float64)
	m.created = make(map[string]int)
}
