package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multilayerYAML = `
name: Multilayer Model
scale: 2
background: 1.0e-5
resolution: 2
materials:
  boron: {name: Boron, sld: 6.908, isld: -0.278}
  potassium: {name: Potassium, sld: 0.487, isld: 0}
layers:
  b: {name: Boron Layer, material: boron, thickness: 5, roughness: 2}
  k: {name: Potassium Layer, material: potassium, thickness: 50, roughness: 1}
items:
  bk: {name: Boron/Potassium Multilayer, layers: [b, k], repetitions: 2}
structure: [bk]
`

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func createMultilayer(t *testing.T, m *Manager) ModelView {
	t.Helper()
	bp, err := DecodeBlueprintYAML(strings.NewReader(multilayerYAML))
	require.NoError(t, err)
	view, err := m.Create(bp)
	require.NoError(t, err)
	return view
}

func counts(material, layer, item, model int) map[calculators.Kind]int {
	return map[calculators.Kind]int{
		calculators.KindMaterial: material,
		calculators.KindLayer:    layer,
		calculators.KindItem:     item,
		calculators.KindModel:    model,
	}
}

func TestBlueprint(t *testing.T) {
	t.Run("shared references", func(t *testing.T) {
		bp, err := DecodeBlueprintYAML(strings.NewReader(`
materials:
  si: {sld: 2.074}
layers:
  top: {material: si, thickness: 10}
  bottom: {material: si}
items:
  one: {layers: [top, bottom]}
structure: [one]
`))
		require.NoError(t, err)
		model, err := bp.Build()
		require.NoError(t, err)

		it, err := model.Structure().At(0)
		require.NoError(t, err)
		require.Equal(t, 2, it.Layers().Len())
		top, _ := it.Layers().At(0)
		bottom, _ := it.Layers().At(1)
		assert.Same(t, top.Material(), bottom.Material())
		assert.Equal(t, "si", top.Material().Name())
		assert.Equal(t, 10.0, top.Thickness().Value())
		assert.Equal(t, 10.0, bottom.Thickness().Value(), "omitted thickness takes the default")
		assert.Equal(t, 1.0, it.Repetitions().Value())
		assert.Equal(t, models.DefaultModelName, model.Name())
	})

	t.Run("empty document builds the default model", func(t *testing.T) {
		bp, err := DecodeBlueprintYAML(strings.NewReader(""))
		require.NoError(t, err)
		model, err := bp.Build()
		require.NoError(t, err)
		assert.Equal(t, 1, model.Structure().Len())
		assert.Equal(t, 1.0, model.Scale().Value())
	})

	t.Run("invalid", func(t *testing.T) {
		cases := map[string]string{
			"unknown key":      "colour: red\n",
			"unknown material": "layers: {a: {material: x}}\nitems: {i: {layers: [a]}}\nstructure: [i]\n",
			"unknown layer":    "items: {i: {layers: [a]}}\nstructure: [i]\n",
			"unknown item":     "structure: [i]\n",
			"empty item":       "items: {i: {layers: []}}\nstructure: [i]\n",
			"repeated item":    "materials: {m: {}}\nlayers: {a: {material: m}}\nitems: {i: {layers: [a]}}\nstructure: [i, i]\n",
			"orphan items":     "materials: {m: {}}\nlayers: {a: {material: m}}\nitems: {i: {layers: [a]}}\n",
		}
		for name, doc := range cases {
			t.Run(name, func(t *testing.T) {
				bp, err := DecodeBlueprintYAML(strings.NewReader(doc))
				if err == nil {
					_, err = bp.Build()
				}
				assert.ErrorIs(t, err, ErrBlueprint)
			})
		}
	})

	t.Run("out of bounds value", func(t *testing.T) {
		bp, err := ParseBlueprintYAML([]byte("materials: {m: {}}\nlayers: {a: {material: m, thickness: -1}}\nitems: {i: {layers: [a]}}\nstructure: [i]\n"))
		require.NoError(t, err)
		_, err = bp.Build()
		assert.ErrorIs(t, err, models.ErrOutOfBounds)
	})
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t, Options{})
	view := createMultilayer(t, m)

	assert.Equal(t, "Multilayer Model", view.Name)
	assert.Equal(t, calculators.AbelesName, view.Calculator)
	assert.Equal(t, 2.0, view.Scale.Value)
	require.Len(t, view.Items, 1)
	require.Len(t, view.Items[0].Layers, 2)
	assert.Equal(t, "Boron", view.Items[0].Layers[0].Material.Name)
	assert.Equal(t, models.Label(view.ID, models.FieldScale), view.Scale.Label)

	got, err := m.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.False(t, got.LastAccessed.Before(view.LastAccessed))

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, counts(2, 2, 1, 1), m.StorageCounts())
	require.Len(t, m.List(), 1)
	assert.Equal(t, 1, m.List()[0].Items)
}

func TestManagerItemOperations(t *testing.T) {
	m := newTestManager(t, Options{})
	view := createMultilayer(t, m)
	b, k := view.Items[0].Layers[0].ID, view.Items[0].Layers[1].ID

	view, err := m.AddItem(view.ID, NewItem{Name: "Potassium/Boron", Layers: []string{k, b}})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, counts(2, 2, 2, 1), m.StorageCounts())

	view, err = m.DuplicateItem(view.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 3)
	assert.Equal(t, view.Items[1].Name, view.Items[2].Name)
	assert.NotEqual(t, view.Items[1].ID, view.Items[2].ID)
	assert.Equal(t, counts(4, 4, 3, 1), m.StorageCounts())

	view, err = m.RemoveItem(view.ID, 0)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, m.StorageCounts()[calculators.KindItem])
	assert.Equal(t, 4, m.StorageCounts()[calculators.KindLayer])

	t.Run("errors", func(t *testing.T) {
		_, err := m.AddItem(view.ID, NewItem{Layers: []string{"nope"}})
		assert.ErrorIs(t, err, ErrUnknownLayer)
		_, err = m.AddItem(view.ID, NewItem{})
		assert.ErrorIs(t, err, ErrBlueprint)
		_, err = m.DuplicateItem(view.ID, 7)
		assert.ErrorIs(t, err, models.ErrIndexOutOfRange)
		_, err = m.RemoveItem(view.ID, -1)
		assert.ErrorIs(t, err, models.ErrIndexOutOfRange)
		_, err = m.RemoveItem("missing", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestManagerBulkUpdate(t *testing.T) {
	m := newTestManager(t, Options{})
	view := createMultilayer(t, m)
	boron := view.Items[0].Layers[0].Material

	unknown, err := m.BulkUpdate(view.ID,
		[]string{boron.SLD.Label, view.Scale.Label, "other/sld", "bogus"},
		[]float64{5.5, 3, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"other/sld", "bogus"}, unknown)

	got, err := m.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.5, got.Items[0].Layers[0].Material.SLD.Value)
	assert.Equal(t, 3.0, got.Scale.Value)

	sld, err := m.Factory().GetValue(boron.SLD.Label)
	require.NoError(t, err)
	assert.Equal(t, 5.5, sld, "the calculator mirror follows the parameter")

	t.Run("bounds are enforced", func(t *testing.T) {
		_, err := m.BulkUpdate(view.ID, []string{view.Scale.Label}, []float64{-1})
		assert.ErrorIs(t, err, models.ErrOutOfBounds)
	})

	t.Run("out of bounds value applies nothing", func(t *testing.T) {
		_, err := m.BulkUpdate(view.ID,
			[]string{boron.SLD.Label, view.Scale.Label},
			[]float64{4.4, -1})
		assert.ErrorIs(t, err, models.ErrOutOfBounds)

		got, err := m.Get(view.ID)
		require.NoError(t, err)
		assert.Equal(t, 5.5, got.Items[0].Layers[0].Material.SLD.Value)
		sld, err := m.Factory().GetValue(boron.SLD.Label)
		require.NoError(t, err)
		assert.Equal(t, 5.5, sld)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := m.BulkUpdate(view.ID, []string{view.Scale.Label}, nil)
		assert.ErrorIs(t, err, calculators.ErrLengthMismatch)
	})

	t.Run("parameters", func(t *testing.T) {
		params, err := m.Parameters(view.ID)
		require.NoError(t, err)
		// 3 model + 1 item + 2*2 layer + 2*2 material
		assert.Len(t, params, 12)
		for i := 1; i < len(params); i++ {
			assert.Less(t, params[i-1].Label, params[i].Label)
		}
	})
}

func TestManagerCalculations(t *testing.T) {
	m := newTestManager(t, Options{})
	view := createMultilayer(t, m)

	q := []float64{0.01, 0.05, 0.1}
	r, err := m.Reflectivity(view.ID, q)
	require.NoError(t, err)
	require.Len(t, r, len(q))
	for _, v := range r {
		assert.Greater(t, v, 0.0)
	}

	z, sld, err := m.SLDProfile(view.ID)
	require.NoError(t, err)
	assert.Equal(t, len(z), len(sld))
	assert.NotEmpty(t, z)

	_, err = m.Reflections([]float64{10, 80})
	assert.ErrorIs(t, err, calculators.ErrUnsupported)

	_, err = m.Reflectivity("missing", q)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerSwitchCalculator(t *testing.T) {
	m := newTestManager(t, Options{})
	view := createMultilayer(t, m)
	_, err := m.DuplicateItem(view.ID, 0)
	require.NoError(t, err)
	before := m.StorageCounts()

	require.NoError(t, m.SwitchCalculator(calculators.PowderName))
	info := m.Calculators()
	assert.Equal(t, calculators.PowderName, info.Current)
	assert.ElementsMatch(t, []string{calculators.AbelesName, calculators.PowderName}, info.Available)
	assert.Equal(t, before, m.StorageCounts(), "models are re-registered with the new calculator")

	refl, err := m.Reflections([]float64{10, 40})
	require.NoError(t, err)
	assert.NotEmpty(t, refl)

	got, err := m.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, calculators.PowderName, got.Calculator)

	err = m.SwitchCalculator("nope")
	assert.ErrorIs(t, err, calculators.ErrUnknownCalculator)
	assert.Equal(t, calculators.PowderName, m.Calculators().Current)

	require.NoError(t, m.SwitchCalculator(calculators.AbelesName))
	assert.Equal(t, before, m.StorageCounts())
}

func TestManagerDeleteAndEviction(t *testing.T) {
	m := newTestManager(t, Options{MaxModels: 2})
	first := createMultilayer(t, m)
	second := createMultilayer(t, m)
	assert.Equal(t, counts(4, 4, 2, 2), m.StorageCounts())

	require.NoError(t, m.Delete(second.ID))
	assert.ErrorIs(t, m.Delete(second.ID), ErrNotFound)
	assert.Equal(t, counts(2, 2, 1, 1), m.StorageCounts())

	// first becomes the most recently used, so the next create evicts second.
	second = createMultilayer(t, m)
	time.Sleep(2 * time.Millisecond)
	_, err := m.Get(first.ID)
	require.NoError(t, err)
	third := createMultilayer(t, m)

	_, err = m.Get(second.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(first.ID)
	assert.NoError(t, err)
	_, err = m.Get(third.ID)
	assert.NoError(t, err)
	assert.Equal(t, counts(4, 4, 2, 2), m.StorageCounts())

	assert.Equal(t, 0, m.CleanupOldModels(time.Hour))
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, 2, m.CleanupOldModels(time.Millisecond))
	assert.Empty(t, m.List())
	assert.Equal(t, counts(0, 0, 0, 0), m.StorageCounts())
}

func TestManagerCompare(t *testing.T) {
	ctx := context.Background()

	t.Run("without store", func(t *testing.T) {
		m := newTestManager(t, Options{})
		_, err := m.Compare(ctx, "x", "y", 0, 0)
		assert.ErrorIs(t, err, ErrNoStore)
	})

	store, err := measurement.NewStore("", measurement.StoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := newTestManager(t, Options{Store: store})
	view := createMultilayer(t, m)

	q := []float64{0.01, 0.02, 0.05, 0.1}
	r, err := m.Reflectivity(view.ID, q)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &measurement.DataSet1D{
		Name: "simulated",
		X:    q,
		Y:    r,
		YErr: []float64{0.01, 0.01, 0.01, 0.01},
		XErr: make([]float64, len(q)),
	}))

	cmp, err := m.Compare(ctx, view.ID, "simulated", 0, 0)
	require.NoError(t, err)
	assert.Len(t, cmp.Model, 4)
	assert.InDelta(t, 0, cmp.ChiSquared, 1e-12)

	cmp, err = m.Compare(ctx, view.ID, "simulated", 0.015, 0.06)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, 0.05}, cmp.X)

	cmp, err = m.Compare(ctx, view.ID, "simulated", 0.04, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.05, 0.1}, cmp.X)

	_, err = m.Compare(ctx, view.ID, "missing", 0, 0)
	assert.ErrorIs(t, err, measurement.ErrNotFound)
	_, err = m.Compare(ctx, view.ID, "simulated", 0.5, 0.6)
	assert.ErrorIs(t, err, measurement.ErrNoData)
}
