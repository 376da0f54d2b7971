package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Range is a suitability interval. Classification is half-open: a value is
// suitable when Low < v <= High, so Low itself is unsuitable and High is
// suitable.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Validate rejects empty, inverted or non-finite ranges.
func (r Range) Validate() error {
	if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
		return eris.Errorf("raster: range bounds must be finite, got (%g, %g]", r.Low, r.High)
	}
	if r.Low >= r.High {
		return eris.Errorf("raster: range low %g must be below high %g", r.Low, r.High)
	}
	return nil
}

// Classify maps v to 1 inside the range and 0 outside. NaN stays NaN.
func (r Range) Classify(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v <= r.Low:
		return 0
	case v <= r.High:
		return 1
	default:
		return 0
	}
}

// Reclassify returns a binary copy of g under r.
func (g *Grid) Reclassify(r Range) *Grid {
	out := g.Like()
	for i, v := range g.Data {
		out.Data[i] = r.Classify(v)
	}
	return out
}

// Multiply combines two aligned grids cell by cell. On binary grids this is a
// logical AND; NaN in either input yields NaN.
func Multiply(a, b *Grid) (*Grid, error) {
	if al := CheckAlignment(a, b); !al.OK {
		return nil, eris.Errorf("raster: multiply %s", al)
	}
	out := a.Like()
	for i := range out.Data {
		out.Data[i] = a.Data[i] * b.Data[i]
	}
	return out, nil
}

// Mask keeps cells whose zone index is non-negative and sets the rest to 0.
// Remaining NaN cells are set to 0 as well; the returned count reports how many
// in-zone cells had no data.
func Mask(g *Grid, zones *ZoneGrid) (*Grid, int, error) {
	if al := CheckAlignment(g, zones.Grid()); !al.OK {
		return nil, 0, eris.Errorf("raster: mask %s", al)
	}
	out := g.Like()
	noData := 0
	for i, v := range g.Data {
		switch {
		case zones.Index[i] < 0:
			out.Data[i] = 0
		case math.IsNaN(v):
			out.Data[i] = 0
			noData++
		default:
			out.Data[i] = v
		}
	}
	return out, noData, nil
}
