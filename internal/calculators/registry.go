package calculators

import (
	"fmt"
	"log/slog"
	"strings"
)

// Template knows how to build one adapter.
type Template struct {
	Name        string
	Description string
	New         func(logger *slog.Logger) (Adapter, error)
}

// Registry holds the adapters that can be selected by name. The first
// template is the default.
type Registry struct {
	templates []Template
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		templates: []Template{
			AbelesTemplate(),
			PowderTemplate(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new template to the registry.
func (r *Registry) Register(t Template) {
	r.templates = append(r.templates, t)
}

// Names lists the registered adapters in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.templates))
	for i, t := range r.templates {
		names[i] = t.Name
	}
	return names
}

// Templates returns a copy of the registered templates.
func (r *Registry) Templates() []Template {
	return append([]Template(nil), r.templates...)
}

// GetTemplateByName returns a template by its name, ignoring case.
func (r *Registry) GetTemplateByName(name string) (Template, error) {
	name = strings.ToLower(name)
	for _, t := range r.templates {
		if strings.ToLower(t.Name) == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrUnknownCalculator, name)
}
