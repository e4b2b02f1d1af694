package calculators

import (
	"fmt"
	"log/slog"

	"github.com/refl-model/backend/internal/models"
)

// AbelesName is the registry name of the reflectometry adapter.
const AbelesName = "abeles"

var (
	abelesSampleLink = LinkTable{
		models.FieldSLD:         abelesSLD,
		models.FieldISLD:        abelesISLD,
		models.FieldThickness:   abelesThick,
		models.FieldRoughness:   abelesRough,
		models.FieldRepetitions: abelesRepeats,
	}
	abelesInstrumentLink = LinkTable{
		models.FieldScale:      abelesScale,
		models.FieldBackground: abelesBkg,
		models.FieldResolution: abelesDQ,
	}
)

// Abeles adapts AbelesCalculator. Every parameter lives on a storage record,
// so labels must be qualified with the owning entity's ID.
type Abeles struct {
	mirror
	calc *AbelesCalculator
}

// NewAbeles creates an adapter around a fresh calculator.
func NewAbeles(logger *slog.Logger) (*Abeles, error) {
	native := []string{abelesSLD, abelesISLD, abelesThick, abelesRough, abelesRepeats, abelesScale, abelesBkg, abelesDQ}
	err := validateLinks(AbelesName, native, map[string]LinkTable{
		"sample":     abelesSampleLink,
		"instrument": abelesInstrumentLink,
	})
	if err != nil {
		return nil, err
	}
	calc := NewAbelesCalculator()
	defaults := map[Kind]map[string]float64{
		KindMaterial: {abelesSLD: 0, abelesISLD: 0},
		KindLayer:    {abelesThick: 0, abelesRough: 0},
		KindItem:     {abelesRepeats: 1},
		KindModel:    {abelesScale: 1, abelesBkg: 0, abelesDQ: 0},
	}
	return &Abeles{
		mirror: newMirror(AbelesName, calc.Storage(), defaults, logger),
		calc:   calc,
	}, nil
}

// Calculator exposes the wrapped calculator.
func (a *Abeles) Calculator() Calculator { return a.calc }

func (a *Abeles) router() router {
	return router{
		sample:     []LinkTable{abelesSampleLink},
		instrument: []LinkTable{abelesInstrumentLink},
	}
}

func (a *Abeles) resolve(label string, translate bool, table LinkTable) (id, native string, err error) {
	id, field := models.SplitLabel(label)
	if id == "" {
		return "", "", &AttributeError{Calculator: a.name, Name: label}
	}
	if translate {
		field = table.Translate(field)
	}
	return id, field, nil
}

func (a *Abeles) GetValue(label string) (float64, error) {
	id, native, err := a.resolve(label, true, abelesSampleLink)
	if err != nil {
		return 0, err
	}
	return a.recordValue(id, native)
}

func (a *Abeles) SetValue(label string, v float64) error { return a.set(label, v, true) }

func (a *Abeles) set(label string, v float64, translate bool) error {
	id, native, err := a.resolve(label, translate, abelesSampleLink)
	if err != nil {
		return err
	}
	return a.setRecordValue(id, native, v)
}

func (a *Abeles) GetInstrumentValue(label string) (float64, error) {
	id, native, err := a.resolve(label, true, abelesInstrumentLink)
	if err != nil {
		return 0, err
	}
	return a.recordValue(id, native)
}

func (a *Abeles) SetInstrumentValue(label string, v float64) error {
	return a.setInstrument(label, v, true)
}

func (a *Abeles) setInstrument(label string, v float64, translate bool) error {
	id, native, err := a.resolve(label, translate, abelesInstrumentLink)
	if err != nil {
		return err
	}
	return a.setRecordValue(id, native, v)
}

func (a *Abeles) BulkUpdate(labels []string, values []float64, external bool) ([]string, error) {
	return bulkUpdate(a.logger, a.router(), a, labels, values, external)
}

func (a *Abeles) FitFunc(x []float64, modelID string) ([]float64, error) {
	y, err := a.calc.Calculate(x, modelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	return y, nil
}

func (a *Abeles) SLDProfile(modelID string) ([]float64, []float64, error) {
	z, sld, err := a.calc.SLDProfile(modelID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", a.name, err)
	}
	return z, sld, nil
}

// AbelesTemplate registers the adapter under AbelesName.
func AbelesTemplate() Template {
	return Template{
		Name:        AbelesName,
		Description: "specular reflectivity by the Abeles matrix method",
		New: func(logger *slog.Logger) (Adapter, error) {
			return NewAbeles(logger)
		},
	}
}
