// Package measurement loads reflectivity data and keeps it in a DuckDB store.
package measurement

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoData         = errors.New("no data rows")
	ErrLengthMismatch = errors.New("column lengths differ")
	ErrNotFound       = errors.New("dataset not found")
)

// DataSet1D is one reflectivity curve: R(Qz) with standard deviations.
type DataSet1D struct {
	Name   string         `json:"name" msgpack:"name"`
	X      []float64      `json:"x" msgpack:"x"`
	Y      []float64      `json:"y" msgpack:"y"`
	YErr   []float64      `json:"ye" msgpack:"ye"`
	XErr   []float64      `json:"xe" msgpack:"xe"`
	Header map[string]any `json:"header,omitempty" msgpack:"header,omitempty"`
}

// Len returns the number of points.
func (d *DataSet1D) Len() int { return len(d.X) }

// Validate checks that every column has one value per point.
func (d *DataSet1D) Validate() error {
	n := len(d.X)
	if n == 0 {
		return fmt.Errorf("dataset %q: %w", d.Name, ErrNoData)
	}
	if len(d.Y) != n || len(d.YErr) != n || len(d.XErr) != n {
		return fmt.Errorf("dataset %q: %w (x=%d y=%d ye=%d xe=%d)",
			d.Name, ErrLengthMismatch, n, len(d.Y), len(d.YErr), len(d.XErr))
	}
	return nil
}

// Variances returns the squared uncertainties of Y and X.
func (d *DataSet1D) Variances() (yVar, xVar []float64) {
	yVar = make([]float64, len(d.YErr))
	for i, e := range d.YErr {
		yVar[i] = e * e
	}
	xVar = make([]float64, len(d.XErr))
	for i, e := range d.XErr {
		xVar[i] = e * e
	}
	return yVar, xVar
}

// Range returns the points with qmin <= X <= qmax.
func (d *DataSet1D) Range(qmin, qmax float64) *DataSet1D {
	out := &DataSet1D{Name: d.Name, Header: d.Header}
	for i, x := range d.X {
		if x < qmin || x > qmax {
			continue
		}
		out.X = append(out.X, x)
		out.Y = append(out.Y, d.Y[i])
		out.YErr = append(out.YErr, d.YErr[i])
		out.XErr = append(out.XErr, d.XErr[i])
	}
	return out
}

// ChiSquared compares model values at the dataset's X with its Y, weighting
// each point by its variance. Points without an uncertainty count unweighted.
func ChiSquared(d *DataSet1D, model []float64) (float64, error) {
	if len(model) != len(d.Y) {
		return 0, fmt.Errorf("%w: %d model values for %d points", ErrLengthMismatch, len(model), len(d.Y))
	}
	var chi2 float64
	for i, y := range d.Y {
		r := y - model[i]
		w := 1.0
		if i < len(d.YErr) && d.YErr[i] > 0 {
			w = 1 / (d.YErr[i] * d.YErr[i])
		}
		chi2 += r * r * w
	}
	if math.IsNaN(chi2) {
		return 0, errors.New("chi squared is not a number")
	}
	return chi2, nil
}
