package calculators

import (
	"fmt"
	"math"
	"sort"

	"github.com/refl-model/backend/internal/models"
)

// Native attribute names of the powder calculator.
const (
	powderScale      = "scale"
	powderA          = "a"
	powderB          = "b"
	powderC          = "c"
	powderAlpha      = "alpha"
	powderBeta       = "beta"
	powderGamma      = "gamma"
	powderU          = "u"
	powderV          = "v"
	powderW          = "w"
	powderX          = "x"
	powderY          = "y"
	powderWavelength = "wavelength"
)

// Pattern holds the indexed pattern parameters.
type Pattern []float64

// Indices into a Pattern.
const (
	PatternZeroShift = 0
	PatternScale     = 1
)

// DefaultPattern has no zero shift and unit scale.
func DefaultPattern() Pattern { return Pattern{0, 1} }

func (p Pattern) at(i int, fallback float64) float64 {
	if i < len(p) {
		return p[i]
	}
	return fallback
}

// BackgroundPoint is one anchor of a point background.
type BackgroundPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Background is a piecewise-linear background over 2θ. Outside the anchors
// the nearest anchor value is held.
type Background struct {
	Points []BackgroundPoint `json:"points"`
}

// NewBackground sorts the anchors by position.
func NewBackground(points ...BackgroundPoint) *Background {
	b := &Background{Points: append([]BackgroundPoint(nil), points...)}
	sort.Slice(b.Points, func(i, j int) bool { return b.Points[i].X < b.Points[j].X })
	return b
}

// At interpolates the background at x.
func (b *Background) At(x float64) float64 {
	if b == nil || len(b.Points) == 0 {
		return 0
	}
	pts := b.Points
	if x <= pts[0].X {
		return pts[0].Y
	}
	if x >= pts[len(pts)-1].X {
		return pts[len(pts)-1].Y
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].X >= x })
	lo, hi := pts[i-1], pts[i]
	if hi.X == lo.X {
		return hi.Y
	}
	return lo.Y + (hi.Y-lo.Y)*(x-lo.X)/(hi.X-lo.X)
}

// Cell is a unit cell: lengths in Å, angles in degrees.
type Cell struct {
	A, B, C            float64
	Alpha, Beta, Gamma float64
}

// reciprocalMetric inverts the direct metric tensor of the cell.
func (c Cell) reciprocalMetric() ([3][3]float64, error) {
	ca := math.Cos(c.Alpha * math.Pi / 180)
	cb := math.Cos(c.Beta * math.Pi / 180)
	cg := math.Cos(c.Gamma * math.Pi / 180)
	g := [3][3]float64{
		{c.A * c.A, c.A * c.B * cg, c.A * c.C * cb},
		{c.A * c.B * cg, c.B * c.B, c.B * c.C * ca},
		{c.A * c.C * cb, c.B * c.C * ca, c.C * c.C},
	}
	det := g[0][0]*(g[1][1]*g[2][2]-g[1][2]*g[2][1]) -
		g[0][1]*(g[1][0]*g[2][2]-g[1][2]*g[2][0]) +
		g[0][2]*(g[1][0]*g[2][1]-g[1][1]*g[2][0])
	if !(det > 0) {
		return [3][3]float64{}, fmt.Errorf("%w: %+v", ErrInvalidCell, c)
	}
	var inv [3][3]float64
	for i := range 3 {
		for j := range 3 {
			i1, i2 := (j+1)%3, (j+2)%3
			j1, j2 := (i+1)%3, (i+2)%3
			inv[i][j] = (g[i1][j1]*g[i2][j2] - g[i1][j2]*g[i2][j1]) / det
		}
	}
	return inv, nil
}

// Reflection is one Bragg peak, representing every hkl with the same d.
type Reflection struct {
	H            int     `json:"h"`
	K            int     `json:"k"`
	L            int     `json:"l"`
	D            float64 `json:"d"`
	TTheta       float64 `json:"ttheta"`
	Multiplicity int     `json:"multiplicity"`
}

// PowderCalculator simulates a constant-wavelength powder diffraction pattern
// of a single phase with pseudo-Voigt peaks.
type PowderCalculator struct {
	storage    *Storage
	attrs      map[string]float64
	conditions map[string]float64
	resolution map[string]float64
	background *Background
	pattern    Pattern

	// MaxIndex bounds |h|, |k| and |l| when generating reflections.
	MaxIndex int
}

// NewPowderCalculator creates a cubic 5 Å phase measured at Cu Kα1.
func NewPowderCalculator() *PowderCalculator {
	return &PowderCalculator{
		storage: NewStorage(),
		attrs: map[string]float64{
			powderScale: 1,
			powderA:     5, powderB: 5, powderC: 5,
			powderAlpha: 90, powderBeta: 90, powderGamma: 90,
		},
		conditions: map[string]float64{powderWavelength: 1.54056},
		resolution: map[string]float64{
			powderU: 0.1, powderV: -0.1, powderW: 0.1,
			powderX: 0, powderY: 0,
		},
		pattern:  DefaultPattern(),
		MaxIndex: 6,
	}
}

func (c *PowderCalculator) Storage() *Storage { return c.storage }

func (c *PowderCalculator) Attr(name string) (float64, bool) {
	v, ok := c.attrs[name]
	return v, ok
}

func (c *PowderCalculator) SetAttr(name string, v float64) error {
	if _, ok := c.attrs[name]; !ok {
		return &AttributeError{Calculator: PowderName, Name: name}
	}
	c.attrs[name] = v
	return nil
}

// Instrument reads a condition (wavelength) or a resolution coefficient.
func (c *PowderCalculator) Instrument(name string) (float64, bool) {
	if v, ok := c.conditions[name]; ok {
		return v, true
	}
	v, ok := c.resolution[name]
	return v, ok
}

func (c *PowderCalculator) SetInstrument(name string, v float64) error {
	if _, ok := c.conditions[name]; ok {
		c.conditions[name] = v
		return nil
	}
	if _, ok := c.resolution[name]; ok {
		c.resolution[name] = v
		return nil
	}
	return &AttributeError{Calculator: PowderName, Name: name}
}

func (c *PowderCalculator) Background() *Background     { return c.background }
func (c *PowderCalculator) SetBackground(b *Background) { c.background = b }
func (c *PowderCalculator) Pattern() Pattern            { return c.pattern }
func (c *PowderCalculator) SetPattern(p Pattern)        { c.pattern = p }

func (c *PowderCalculator) cell() Cell {
	return Cell{
		A: c.attrs[powderA], B: c.attrs[powderB], C: c.attrs[powderC],
		Alpha: c.attrs[powderAlpha], Beta: c.attrs[powderBeta], Gamma: c.attrs[powderGamma],
	}
}

// Reflections lists the Bragg peaks with 2θ inside [lo, hi] degrees, ordered
// by 2θ. Peaks sharing a d-spacing are merged into one with their count as
// multiplicity.
func (c *PowderCalculator) Reflections(lo, hi float64) ([]Reflection, error) {
	gstar, err := c.cell().reciprocalMetric()
	if err != nil {
		return nil, err
	}
	lambda := c.conditions[powderWavelength]
	if !(lambda > 0) {
		return nil, fmt.Errorf("%w: wavelength %g", ErrInvalidCell, lambda)
	}

	groups := make(map[int64]*Reflection)
	var order []int64
	n := c.MaxIndex
	for h := n; h >= -n; h-- {
		for k := n; k >= -n; k-- {
			for l := n; l >= -n; l-- {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				v := [3]float64{float64(h), float64(k), float64(l)}
				var q float64
				for i := range 3 {
					for j := range 3 {
						q += v[i] * gstar[i][j] * v[j]
					}
				}
				d := 1 / math.Sqrt(q)
				s := lambda / (2 * d)
				if s > 1 {
					continue
				}
				tth := 2 * math.Asin(s) * 180 / math.Pi
				if tth < lo || tth > hi {
					continue
				}
				key := int64(math.Round(d * 1e6))
				if r, ok := groups[key]; ok {
					r.Multiplicity++
					continue
				}
				groups[key] = &Reflection{H: h, K: k, L: l, D: d, TTheta: tth, Multiplicity: 1}
				order = append(order, key)
			}
		}
	}

	out := make([]Reflection, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TTheta < out[j].TTheta })
	return out, nil
}

// Calculate returns the pattern intensity at each 2θ in x (degrees).
func (c *PowderCalculator) Calculate(x []float64) ([]float64, error) {
	if len(x) == 0 {
		return []float64{}, nil
	}
	zero := c.pattern.at(PatternZeroShift, 0)
	scale := c.attrs[powderScale] * c.pattern.at(PatternScale, 1)

	lo, hi := x[0], x[0]
	for _, xi := range x {
		lo, hi = math.Min(lo, xi), math.Max(hi, xi)
	}
	refl, err := c.Reflections(0, 180)
	if err != nil {
		return nil, err
	}

	type peak struct {
		pos, fwhm, eta, height float64
	}
	peaks := make([]peak, 0, len(refl))
	for _, r := range refl {
		theta := r.TTheta / 2 * math.Pi / 180
		h, eta := c.profile(theta)
		if !(h > 0) {
			continue
		}
		// Skip peaks that cannot reach the requested range.
		if r.TTheta+zero < lo-20*h || r.TTheta+zero > hi+20*h {
			continue
		}
		sin, cos := math.Sin(theta), math.Cos(theta)
		lp := (1 + math.Pow(math.Cos(2*theta), 2)) / (sin * sin * cos)
		peaks = append(peaks, peak{pos: r.TTheta + zero, fwhm: h, eta: eta, height: float64(r.Multiplicity) * lp})
	}

	out := make([]float64, len(x))
	for i, xi := range x {
		var y float64
		for _, p := range peaks {
			y += p.height * pseudoVoigt(xi-p.pos, p.fwhm, p.eta)
		}
		out[i] = scale*y + c.background.At(xi)
	}
	return out, nil
}

// profile returns the pseudo-Voigt FWHM and mixing at Bragg angle theta
// (radians) from the Caglioti Gaussian and Lorentzian widths.
func (c *PowderCalculator) profile(theta float64) (fwhm, eta float64) {
	tan := math.Tan(theta)
	u, v, w := c.resolution[powderU], c.resolution[powderV], c.resolution[powderW]
	hg := math.Sqrt(math.Max(u*tan*tan+v*tan+w, 0))
	hl := math.Max(c.resolution[powderX]*tan+c.resolution[powderY]/math.Cos(theta), 0)

	// Thompson-Cox-Hastings approximation.
	h5 := math.Pow(hg, 5) + 2.69269*math.Pow(hg, 4)*hl + 2.42843*math.Pow(hg, 3)*hl*hl +
		4.47163*hg*hg*math.Pow(hl, 3) + 0.07842*hg*math.Pow(hl, 4) + math.Pow(hl, 5)
	fwhm = math.Pow(h5, 0.2)
	if fwhm == 0 {
		return 0, 0
	}
	ratio := hl / fwhm
	eta = 1.36603*ratio - 0.47719*ratio*ratio + 0.11116*ratio*ratio*ratio
	return fwhm, math.Min(math.Max(eta, 0), 1)
}

// pseudoVoigt is an area-normalised mix of a Lorentzian and a Gaussian of the
// same FWHM.
func pseudoVoigt(dx, fwhm, eta float64) float64 {
	hw := fwhm / 2
	lorentz := hw / (math.Pi * (dx*dx + hw*hw))
	sigma := fwhm * fwhmToSigma
	gauss := math.Exp(-dx*dx/(2*sigma*sigma)) / (sigma * math.Sqrt(2*math.Pi))
	return eta*lorentz + (1-eta)*gauss
}

func indexError(collection string, i, n int) error {
	return &models.IndexError{Collection: collection, Index: i, Len: n}
}
