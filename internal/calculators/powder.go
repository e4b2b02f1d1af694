package calculators

import (
	"fmt"
	"log/slog"

	"github.com/refl-model/backend/internal/models"
)

// PowderName is the registry name of the powder diffraction adapter.
const PowderName = "powder"

var (
	powderSampleLink = LinkTable{
		"phase_scale": powderScale,
	}
	powderCrystalLink = LinkTable{
		"length_a":    powderA,
		"length_b":    powderB,
		"length_c":    powderC,
		"angle_alpha": powderAlpha,
		"angle_beta":  powderBeta,
		"angle_gamma": powderGamma,
	}
	powderInstrumentLink = LinkTable{
		"resolution_u": powderU,
		"resolution_v": powderV,
		"resolution_w": powderW,
		"resolution_x": powderX,
		"resolution_y": powderY,
		"wavelength":   powderWavelength,
	}
)

// Powder adapts PowderCalculator. Bare labels address the phase and the
// instrument; labels qualified with an entity ID address storage records,
// which this calculator keeps for bookkeeping only.
type Powder struct {
	mirror
	calc *PowderCalculator
}

// NewPowder creates an adapter around a fresh calculator.
func NewPowder(logger *slog.Logger) (*Powder, error) {
	native := []string{
		powderScale, powderA, powderB, powderC, powderAlpha, powderBeta, powderGamma,
		powderU, powderV, powderW, powderX, powderY, powderWavelength,
	}
	err := validateLinks(PowderName, native, map[string]LinkTable{
		"sample":     powderSampleLink,
		"crystal":    powderCrystalLink,
		"instrument": powderInstrumentLink,
	})
	if err != nil {
		return nil, err
	}
	calc := NewPowderCalculator()
	defaults := map[Kind]map[string]float64{
		KindMaterial: {models.FieldSLD: 0, models.FieldISLD: 0},
		KindLayer:    {models.FieldThickness: 0, models.FieldRoughness: 0},
		KindItem:     {models.FieldRepetitions: 1},
		KindModel:    {models.FieldScale: 1, models.FieldBackground: 0, models.FieldResolution: 0},
	}
	return &Powder{
		mirror: newMirror(PowderName, calc.Storage(), defaults, logger),
		calc:   calc,
	}, nil
}

// Calculator exposes the wrapped calculator.
func (p *Powder) Calculator() Calculator { return p.calc }

func (p *Powder) router() router {
	return router{
		sample:     []LinkTable{powderSampleLink, powderCrystalLink},
		instrument: []LinkTable{powderInstrumentLink},
	}
}

func (p *Powder) GetValue(label string) (float64, error) {
	id, field := models.SplitLabel(label)
	native := translate(field, powderSampleLink, powderCrystalLink)
	if id != "" {
		return p.recordValue(id, native)
	}
	v, ok := p.calc.Attr(native)
	if !ok {
		return 0, &AttributeError{Calculator: p.name, Name: native}
	}
	return v, nil
}

func (p *Powder) SetValue(label string, v float64) error { return p.set(label, v, true) }

func (p *Powder) set(label string, v float64, external bool) error {
	id, native := models.SplitLabel(label)
	if external {
		native = translate(native, powderSampleLink, powderCrystalLink)
	}
	if id != "" {
		return p.setRecordValue(id, native, v)
	}
	if err := p.calc.SetAttr(native, v); err != nil {
		return err
	}
	p.logger.Debug("value set", "attribute", native, "value", v)
	return nil
}

func (p *Powder) GetInstrumentValue(label string) (float64, error) {
	id, field := models.SplitLabel(label)
	native := powderInstrumentLink.Translate(field)
	if id != "" {
		return p.recordValue(id, native)
	}
	v, ok := p.calc.Instrument(native)
	if !ok {
		return 0, &AttributeError{Calculator: p.name, Name: native}
	}
	return v, nil
}

func (p *Powder) SetInstrumentValue(label string, v float64) error {
	return p.setInstrument(label, v, true)
}

func (p *Powder) setInstrument(label string, v float64, external bool) error {
	id, native := models.SplitLabel(label)
	if external {
		native = powderInstrumentLink.Translate(native)
	}
	if id != "" {
		return p.setRecordValue(id, native, v)
	}
	if err := p.calc.SetInstrument(native, v); err != nil {
		return err
	}
	p.logger.Debug("instrument value set", "attribute", native, "value", v)
	return nil
}

func (p *Powder) BulkUpdate(labels []string, values []float64, external bool) ([]string, error) {
	return bulkUpdate(p.logger, p.router(), p, labels, values, external)
}

// FitFunc ignores modelID: the calculator holds a single phase.
func (p *Powder) FitFunc(x []float64, _ string) ([]float64, error) {
	y, err := p.calc.Calculate(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	return y, nil
}

// GetHKL lists the reflections inside the 2θ range spanned by x.
func (p *Powder) GetHKL(x []float64) ([]Reflection, error) {
	if len(x) == 0 {
		return []Reflection{}, nil
	}
	lo, hi := x[0], x[0]
	for _, xi := range x {
		lo, hi = min(lo, xi), max(hi, xi)
	}
	return p.calc.Reflections(lo, hi)
}

func (p *Powder) background(bg *Background) (*Background, int) {
	if bg != nil {
		p.calc.SetBackground(bg)
	}
	bg = p.calc.Background()
	if bg == nil {
		return nil, 0
	}
	return bg, len(bg.Points)
}

func (p *Powder) GetBackgroundValue(bg *Background, i int) (float64, error) {
	bg, n := p.background(bg)
	if i < 0 || i >= n {
		return 0, indexError("background", i, n)
	}
	return bg.Points[i].Y, nil
}

func (p *Powder) SetBackgroundValue(bg *Background, i int, v float64) error {
	bg, n := p.background(bg)
	if i < 0 || i >= n {
		return indexError("background", i, n)
	}
	bg.Points[i].Y = v
	return nil
}

func (p *Powder) pattern(pat Pattern) Pattern {
	if pat != nil {
		p.calc.SetPattern(pat)
	}
	return p.calc.Pattern()
}

func (p *Powder) GetPatternValue(pat Pattern, i int) (float64, error) {
	pat = p.pattern(pat)
	if i < 0 || i >= len(pat) {
		return 0, indexError("pattern", i, len(pat))
	}
	return pat[i], nil
}

func (p *Powder) SetPatternValue(pat Pattern, i int, v float64) error {
	pat = p.pattern(pat)
	if i < 0 || i >= len(pat) {
		return indexError("pattern", i, len(pat))
	}
	pat[i] = v
	return nil
}

// PowderTemplate registers the adapter under PowderName.
func PowderTemplate() Template {
	return Template{
		Name:        PowderName,
		Description: "constant-wavelength powder diffraction of one crystal phase",
		New: func(logger *slog.Logger) (Adapter, error) {
			return NewPowder(logger)
		},
	}
}
