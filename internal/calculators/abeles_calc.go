package calculators

import (
	"math"
	"math/cmplx"
)

// Native attribute names of the Abeles calculator.
const (
	abelesSLD     = "sld"
	abelesISLD    = "isld"
	abelesThick   = "thick"
	abelesRough   = "rough"
	abelesRepeats = "repeats"
	abelesScale   = "scale"
	abelesBkg     = "bkg"
	abelesDQ      = "dq"
)

const (
	defaultSmearPoints   = 17
	defaultProfilePoints = 500
	smearWidth           = 3.5
)

// fwhmToSigma converts a Gaussian full width at half maximum to sigma.
var fwhmToSigma = 1 / (2 * math.Sqrt(2*math.Ln2))

// AbelesCalculator computes specular reflectivity of a layered sample with the
// Abeles characteristic matrix method. Layers are read from its storage; the
// first slab of the first item is the fronting medium and the last slab of
// the last item the backing medium.
type AbelesCalculator struct {
	storage *Storage

	// SmearPoints is the number of Gaussian quadrature points per q.
	SmearPoints int
	// ProfilePoints is the number of z samples of an SLD profile.
	ProfilePoints int
}

// NewAbelesCalculator creates a calculator with an empty storage.
func NewAbelesCalculator() *AbelesCalculator {
	return &AbelesCalculator{
		storage:       NewStorage(),
		SmearPoints:   defaultSmearPoints,
		ProfilePoints: defaultProfilePoints,
	}
}

// Storage returns the record store the calculator reads.
func (c *AbelesCalculator) Storage() *Storage { return c.storage }

type slab struct {
	thick float64
	rough float64
	sld   complex128
}

// slabs flattens a model record into its stack, expanding repetitions.
func (c *AbelesCalculator) slabs(modelID string) ([]slab, error) {
	model, err := c.storage.Get(KindModel, modelID)
	if err != nil {
		return nil, err
	}
	var out []slab
	for _, itemID := range model.Children {
		item, err := c.storage.Get(KindItem, itemID)
		if err != nil {
			return nil, err
		}
		unit := make([]slab, 0, len(item.Children))
		for _, layerID := range item.Children {
			layer, err := c.storage.Get(KindLayer, layerID)
			if err != nil {
				return nil, err
			}
			s := slab{thick: layer.Values[abelesThick], rough: layer.Values[abelesRough]}
			if len(layer.Children) > 0 {
				mat, err := c.storage.Get(KindMaterial, layer.Children[0])
				if err != nil {
					return nil, err
				}
				s.sld = complex(mat.Values[abelesSLD], mat.Values[abelesISLD])
			}
			unit = append(unit, s)
		}
		repeats := max(int(math.Round(item.Values[abelesRepeats])), 1)
		for range repeats {
			out = append(out, unit...)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyModel
	}
	return out, nil
}

// Calculate returns scale*R(q) + bkg for the model, smeared by the model's
// resolution dq (percent FWHM of q).
func (c *AbelesCalculator) Calculate(q []float64, modelID string) ([]float64, error) {
	model, err := c.storage.Get(KindModel, modelID)
	if err != nil {
		return nil, err
	}
	stack, err := c.slabs(modelID)
	if err != nil {
		return nil, err
	}
	scale := model.Values[abelesScale]
	bkg := model.Values[abelesBkg]
	dq := model.Values[abelesDQ]

	out := make([]float64, len(q))
	for i, qi := range q {
		r := smeared(qi, dq, c.SmearPoints, func(x float64) float64 { return abeles(x, stack) })
		out[i] = scale*r + bkg
	}
	return out, nil
}

// abeles is the unsmeared reflectivity at momentum transfer q (1/Å) with SLDs
// in 1e-6/Å². Interfacial roughness uses the Nevot-Croce factor.
func abeles(q float64, stack []slab) float64 {
	if len(stack) < 2 {
		return 0
	}
	k0 := complex(math.Abs(q)/2, 0)
	kn := make([]complex128, len(stack))
	for j, s := range stack {
		kn[j] = cmplx.Sqrt(k0*k0 - 4*math.Pi*(s.sld-stack[0].sld)*1e-6)
	}

	m00, m01, m10, m11 := complex(1, 0), complex(0, 0), complex(0, 0), complex(1, 0)
	for n := 1; n < len(stack); n++ {
		var r complex128
		if den := kn[n-1] + kn[n]; den != 0 {
			sigma := stack[n].rough
			r = (kn[n-1] - kn[n]) / den * cmplx.Exp(-2*kn[n-1]*kn[n]*complex(sigma*sigma, 0))
		}
		beta := complex(1, 0)
		if n > 1 {
			beta = cmplx.Exp(1i * kn[n-1] * complex(stack[n-1].thick, 0))
		}
		c00, c01, c10, c11 := beta, r*beta, r/beta, 1/beta
		m00, m01, m10, m11 = m00*c00+m01*c10, m00*c01+m01*c11, m10*c00+m11*c10, m10*c01+m11*c11
	}
	if m00 == 0 {
		return 1
	}
	r := m10 / m00
	return real(r * cmplx.Conj(r))
}

// smeared convolves f with a Gaussian resolution kernel of width dq% of q.
func smeared(q, dq float64, points int, f func(float64) float64) float64 {
	sigma := math.Abs(q) * dq / 100 * fwhmToSigma
	if dq <= 0 || sigma == 0 || points < 2 {
		return f(q)
	}
	step := 2 * smearWidth * sigma / float64(points-1)
	var sum, norm float64
	for i := range points {
		x := -smearWidth*sigma + float64(i)*step
		w := math.Exp(-x * x / (2 * sigma * sigma))
		sum += w * f(q+x)
		norm += w
	}
	return sum / norm
}

// SLDProfile returns the real scattering length density as a function of
// depth z (Å), with interfaces smoothed by an error function.
func (c *AbelesCalculator) SLDProfile(modelID string) (z, sld []float64, err error) {
	stack, err := c.slabs(modelID)
	if err != nil {
		return nil, nil, err
	}
	points := max(c.ProfilePoints, 2)

	start, end := -5.0, 5.0
	if len(stack) > 1 {
		start -= 4 * math.Abs(stack[1].rough)
		end += 4 * math.Abs(stack[len(stack)-1].rough)
	}
	// Interface n sits between slab n-1 and slab n.
	edges := make([]float64, len(stack))
	for n := 2; n < len(stack); n++ {
		edges[n] = edges[n-1] + stack[n-1].thick
	}
	end += edges[len(edges)-1]

	z = make([]float64, points)
	sld = make([]float64, points)
	step := (end - start) / float64(points-1)
	for i := range points {
		zi := start + float64(i)*step
		v := real(stack[0].sld)
		for n := 1; n < len(stack); n++ {
			delta := real(stack[n].sld) - real(stack[n-1].sld)
			v += delta * smoothStep(zi-edges[n], stack[n].rough)
		}
		z[i] = zi
		sld[i] = v
	}
	return z, sld, nil
}

func smoothStep(x, sigma float64) float64 {
	if sigma == 0 {
		if x < 0 {
			return 0
		}
		return 1
	}
	return 0.5 * (1 + math.Erf(x/(math.Abs(sigma)*math.Sqrt2)))
}
