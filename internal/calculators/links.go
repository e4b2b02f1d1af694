package calculators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/refl-model/backend/internal/models"
)

// LinkTable translates abstract parameter labels into calculator-native
// attribute names.
type LinkTable map[string]string

// Has reports whether label is an abstract name in the table.
func (t LinkTable) Has(label string) bool {
	_, ok := t[label]
	return ok
}

// HasNative reports whether native is a translation target of the table.
func (t LinkTable) HasNative(native string) bool {
	for _, v := range t {
		if v == native {
			return true
		}
	}
	return false
}

// Translate returns the native name of label, or label unchanged when the
// table does not know it.
func (t LinkTable) Translate(label string) string {
	if native, ok := t[label]; ok {
		return native
	}
	return label
}

// translate tries each table in turn.
func translate(label string, tables ...LinkTable) string {
	for _, t := range tables {
		if t.Has(label) {
			return t[label]
		}
	}
	return label
}

// validateLinks checks that every table entry targets an attribute the
// calculator actually has. Adapters call it on construction.
func validateLinks(calculator string, native []string, tables map[string]LinkTable) error {
	known := make(map[string]struct{}, len(native))
	for _, n := range native {
		known[n] = struct{}{}
	}

	var errs []string
	for table, links := range tables {
		for label, target := range links {
			if _, ok := known[target]; !ok {
				errs = append(errs, fmt.Sprintf("%s table: %q maps to unknown attribute %q", table, label, target))
			}
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("%s link validation failed:\n- %s", calculator, strings.Join(errs, "\n- "))
	}
	return nil
}

type family int

const (
	familyNone family = iota
	familySample
	familyInstrument
)

// router decides which setter a bulk-update label goes to.
type router struct {
	sample     []LinkTable
	instrument []LinkTable
}

func (r router) classify(label string, external bool) family {
	_, field := models.SplitLabel(label)
	match := func(tables []LinkTable) bool {
		for _, t := range tables {
			if external && t.Has(field) || !external && t.HasNative(field) {
				return true
			}
		}
		return false
	}
	switch {
	case match(r.sample):
		return familySample
	case match(r.instrument):
		return familyInstrument
	default:
		return familyNone
	}
}
