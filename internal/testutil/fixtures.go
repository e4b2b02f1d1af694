// fixtures.go - Sample models shared by tests
package testutil

import (
	"testing"

	"github.com/refl-model/backend/internal/models"
)

// BoronPotassium is a two-material sample: one item stacking the Boron and
// Potassium layers, and a spare item stacking the same layers reversed.
type BoronPotassium struct {
	Boron, Potassium           *models.Material
	BoronLayer, PotassiumLayer *models.Layer
	Item, Reversed             *models.Item
	Model                      *models.Model
}

// NewBoronPotassium builds the fixture with scale 2, background 1e-5 and 2%
// resolution. Only Item is part of the model's structure.
func NewBoronPotassium(t testing.TB) *BoronPotassium {
	t.Helper()
	var f BoronPotassium
	var err error

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building fixture: %v", err)
		}
	}

	f.Boron, err = models.MaterialFromPars(6.908, -0.278, "Boron")
	must(err)
	f.Potassium, err = models.MaterialFromPars(0.487, 0.000, "Potassium")
	must(err)
	f.BoronLayer, err = models.LayerFromPars(f.Boron, 5.0, 2.0, "Boron Layer")
	must(err)
	f.PotassiumLayer, err = models.LayerFromPars(f.Potassium, 50.0, 1.0, "Potassium Layer")
	must(err)

	forward := models.NewLayers("Boron/Potassium", f.BoronLayer, f.PotassiumLayer)
	reverse := models.NewLayers("Potassium/Boron", f.PotassiumLayer, f.BoronLayer)
	f.Item, err = models.ItemFromPars(forward, 2.0, "Boron/Potassium Multilayer")
	must(err)
	f.Reversed, err = models.ItemFromPars(reverse, 1.0, "Potassium/Boron Multilayer")
	must(err)

	structure := models.NewStructure("Multilayer Structure", f.Item)
	f.Model, err = models.ModelFromPars(structure, 2, 1e-5, 2.0, "Multilayer Model")
	must(err)
	return &f
}

// Substrate builds air on a silicon backing with no roughness, the textbook
// Fresnel case.
func Substrate(t testing.TB) *models.Model {
	t.Helper()
	air, err := models.MaterialFromPars(0, 0, "Air")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	si, err := models.MaterialFromPars(2.074, 0, "Si")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	airLayer, err := models.LayerFromPars(air, 0, 0, "Air Layer")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	siLayer, err := models.LayerFromPars(si, 0, 0, "Si Layer")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	item, err := models.ItemFromPars(models.NewLayers("Bulk", airLayer, siLayer), 1, "Bulk")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	m, err := models.ModelFromPars(models.NewStructure("Bulk Structure", item), 1, 0, 0, "Substrate")
	if err != nil {
		t.Fatalf("building substrate: %v", err)
	}
	return m
}
