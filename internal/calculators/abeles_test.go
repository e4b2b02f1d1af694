package calculators

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refl-model/backend/internal/models"
	"github.com/refl-model/backend/internal/testutil"
)

func newAbelesFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(NewRegistry(), nil)
	require.NoError(t, err)
	require.Equal(t, AbelesName, f.CurrentName())
	return f
}

func fresnel(q, sld float64) float64 {
	k0 := complex(q/2, 0)
	k1 := cmplx.Sqrt(k0*k0 - complex(4*math.Pi*sld*1e-6, 0))
	r := (k0 - k1) / (k0 + k1)
	return real(r * cmplx.Conj(r))
}

func TestAbelesReflectivity(t *testing.T) {
	t.Run("bare substrate is the Fresnel curve", func(t *testing.T) {
		f := newAbelesFactory(t)
		m := testutil.Substrate(t)
		require.NoError(t, m.SetInterface(f))

		q := []float64{0.02, 0.05, 0.1, 0.2, 0.3}
		r, err := f.FitFunc(q, m.ID())
		require.NoError(t, err)
		require.Len(t, r, len(q))
		for i, qi := range q {
			assert.InEpsilon(t, fresnel(qi, 2.074), r[i], 1e-9, "q=%g", qi)
		}
	})

	t.Run("total reflection below the critical edge", func(t *testing.T) {
		f := newAbelesFactory(t)
		m := testutil.Substrate(t)
		require.NoError(t, m.SetInterface(f))

		qc := math.Sqrt(16 * math.Pi * 2.074e-6)
		r, err := f.FitFunc([]float64{qc / 4, qc / 2, 0.9 * qc}, m.ID())
		require.NoError(t, err)
		for _, ri := range r {
			assert.InDelta(t, 1.0, ri, 1e-9)
		}
	})

	t.Run("scale and background apply", func(t *testing.T) {
		f := newAbelesFactory(t)
		m := testutil.Substrate(t)
		require.NoError(t, m.SetInterface(f))
		require.NoError(t, m.Scale().SetValue(2))
		require.NoError(t, m.Background().SetValue(1e-6))

		r, err := f.FitFunc([]float64{0.1}, m.ID())
		require.NoError(t, err)
		assert.InEpsilon(t, 2*fresnel(0.1, 2.074)+1e-6, r[0], 1e-9)
	})

	t.Run("roughness damps reflectivity", func(t *testing.T) {
		f := newAbelesFactory(t)
		m := testutil.Substrate(t)
		require.NoError(t, m.SetInterface(f))
		smooth, err := f.FitFunc([]float64{0.2}, m.ID())
		require.NoError(t, err)

		item, err := m.Structure().At(0)
		require.NoError(t, err)
		si, err := item.Layers().At(1)
		require.NoError(t, err)
		require.NoError(t, si.Roughness().SetValue(5))

		rough, err := f.FitFunc([]float64{0.2}, m.ID())
		require.NoError(t, err)
		assert.Less(t, rough[0], smooth[0])
		assert.InEpsilon(t, smooth[0]*math.Exp(-0.2*0.2*25), rough[0], 0.05)
	})

	t.Run("repetitions expand the stack", func(t *testing.T) {
		fx := testutil.NewBoronPotassium(t)
		f := newAbelesFactory(t)
		require.NoError(t, fx.Model.SetInterface(f))

		stack, err := f.Current().(*Abeles).calc.slabs(fx.Model.ID())
		require.NoError(t, err)
		assert.Len(t, stack, 4)
		assert.Equal(t, 50.0, stack[3].thick)
		assert.Equal(t, complex(6.908, -0.278), stack[2].sld)
	})

	t.Run("empty model", func(t *testing.T) {
		f := newAbelesFactory(t)
		require.NoError(t, f.CreateModel("m", "empty"))
		_, err := f.FitFunc([]float64{0.1}, "m")
		assert.ErrorIs(t, err, ErrEmptyModel)
		_, err = f.FitFunc([]float64{0.1}, "unknown")
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})
}

func TestSmearing(t *testing.T) {
	constant := func(float64) float64 { return 3 }
	assert.InDelta(t, 3.0, smeared(0.1, 5, defaultSmearPoints, constant), 1e-12)

	linear := func(q float64) float64 { return q }
	assert.InDelta(t, 0.1, smeared(0.1, 5, defaultSmearPoints, linear), 1e-12)

	curved := func(q float64) float64 { return q * q }
	assert.Greater(t, smeared(0.1, 5, defaultSmearPoints, curved), 0.01)
	assert.InDelta(t, 0.01, smeared(0.1, 0, defaultSmearPoints, curved), 1e-15)
}

func TestAbelesSLDProfile(t *testing.T) {
	f := newAbelesFactory(t)
	m := testutil.Substrate(t)
	require.NoError(t, m.SetInterface(f))

	z, sld, err := f.SLDProfile(m.ID())
	require.NoError(t, err)
	require.Len(t, z, defaultProfilePoints)
	require.Len(t, sld, defaultProfilePoints)
	assert.Equal(t, -5.0, z[0])
	assert.InDelta(t, 5.0, z[len(z)-1], 1e-9)
	assert.Equal(t, 0.0, sld[0])
	assert.InDelta(t, 2.074, sld[len(sld)-1], 1e-12)

	// A rough interface widens the range and smooths the step.
	item, err := m.Structure().At(0)
	require.NoError(t, err)
	si, err := item.Layers().At(1)
	require.NoError(t, err)
	require.NoError(t, si.Roughness().SetValue(3))

	z, sld, err = f.SLDProfile(m.ID())
	require.NoError(t, err)
	assert.Equal(t, -17.0, z[0])
	assert.InDelta(t, 17.0, z[len(z)-1], 1e-9)
	mid := len(z) / 2
	assert.InDelta(t, 1.037, sld[mid], 0.05)
}

func TestAbelesValues(t *testing.T) {
	fx := testutil.NewBoronPotassium(t)
	f := newAbelesFactory(t)
	require.NoError(t, fx.Model.SetInterface(f))

	t.Run("element values are mirrored", func(t *testing.T) {
		v, err := f.GetValue(models.Label(fx.Boron.ID(), models.FieldSLD))
		require.NoError(t, err)
		assert.Equal(t, 6.908, v)

		v, err = f.GetValue(models.Label(fx.PotassiumLayer.ID(), models.FieldThickness))
		require.NoError(t, err)
		assert.Equal(t, 50.0, v)

		v, err = f.GetInstrumentValue(models.Label(fx.Model.ID(), models.FieldResolution))
		require.NoError(t, err)
		assert.Equal(t, 2.0, v)
	})

	t.Run("parameter changes reach the calculator", func(t *testing.T) {
		require.NoError(t, fx.Boron.SLD().SetValue(7.1))
		rec, err := f.Current().Storage().Get(KindMaterial, fx.Boron.ID())
		require.NoError(t, err)
		assert.Equal(t, 7.1, rec.Values[abelesSLD])
	})

	t.Run("unqualified or unknown labels fail", func(t *testing.T) {
		_, err := f.GetValue("sld")
		assert.ErrorIs(t, err, ErrUnknownAttribute)
		err = f.SetValue(models.Label(fx.Boron.ID(), "thickness"), 1)
		assert.ErrorIs(t, err, ErrUnknownAttribute)
		err = f.SetValue(models.Label("nobody", "sld"), 1)
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})

	t.Run("bulk update", func(t *testing.T) {
		labels := []string{
			models.Label(fx.Boron.ID(), models.FieldISLD),
			models.Label(fx.Model.ID(), models.FieldBackground),
			"wavelength",
		}
		unknown, err := f.BulkUpdate(labels, []float64{-0.5, 2e-6, 1.54}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"wavelength"}, unknown)

		v, err := f.GetValue(labels[0])
		require.NoError(t, err)
		assert.Equal(t, -0.5, v)
		v, err = f.GetInstrumentValue(labels[1])
		require.NoError(t, err)
		assert.Equal(t, 2e-6, v)
	})

	t.Run("bulk update with native labels", func(t *testing.T) {
		label := models.Label(fx.BoronLayer.ID(), abelesThick)
		unknown, err := f.BulkUpdate([]string{label}, []float64{8}, false)
		require.NoError(t, err)
		assert.Empty(t, unknown)
		v, err := f.GetValue(models.Label(fx.BoronLayer.ID(), models.FieldThickness))
		require.NoError(t, err)
		assert.Equal(t, 8.0, v)
	})

	t.Run("bulk update length mismatch", func(t *testing.T) {
		_, err := f.BulkUpdate([]string{"a", "b"}, []float64{1}, true)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}
