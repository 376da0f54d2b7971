package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/aquasite/internal/crs"
)

// KelvinOffset converts Kelvin to degrees Celsius.
const KelvinOffset = 273.15

// Stack is a multi-band raster whose bands share CRS, extent and resolution,
// e.g. one band per year of a time series.
type Stack struct {
	Bands  []*Grid
	Labels []string
}

// NewStack combines bands into a stack. All bands must share geometry and CRS.
func NewStack(bands []*Grid, labels []string) (Stack, error) {
	if len(bands) == 0 {
		return Stack{}, eris.New("raster: stack needs at least one band")
	}
	if labels != nil && len(labels) != len(bands) {
		return Stack{}, eris.Errorf("raster: %d labels for %d bands", len(labels), len(bands))
	}
	first := bands[0]
	for i, b := range bands[1:] {
		if !b.CRS.Equal(first.CRS) {
			return Stack{}, eris.Errorf("raster: band %d CRS %s differs from %s", i+1, b.CRS, first.CRS)
		}
		if !sameGeometry(first, b, alignTolerance) {
			return Stack{}, eris.Errorf("raster: band %d geometry %dx%d %s differs from %dx%d %s",
				i+1, b.Cols, b.Rows, b.Extent(), first.Cols, first.Rows, first.Extent())
		}
	}
	return Stack{Bands: bands, Labels: labels}, nil
}

// Len returns the number of bands.
func (s Stack) Len() int { return len(s.Bands) }

// CRS returns the shared CRS of the bands.
func (s Stack) CRS() crs.CRS {
	if len(s.Bands) == 0 {
		return crs.CRS{}
	}
	return s.Bands[0].CRS
}

// Mean reduces the stack to the per-cell mean. Missing bands are skipped, so a
// single missing year does not blank the cell; a cell missing in every band
// stays NaN.
func (s Stack) Mean() *Grid {
	if len(s.Bands) == 0 {
		return nil
	}
	out := s.Bands[0].Like()
	buf := make([]float64, 0, len(s.Bands))
	for i := range out.Data {
		buf = buf[:0]
		for _, b := range s.Bands {
			if v := b.Data[i]; !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) > 0 {
			out.Data[i] = stat.Mean(buf, nil)
		}
	}
	return out
}

// Reproject reprojects every band into dst. Bands already in dst are returned
// unchanged.
func (s Stack) Reproject(dst crs.CRS) (Stack, error) {
	if s.CRS().Equal(dst) {
		return s, nil
	}
	bands := make([]*Grid, len(s.Bands))
	for i, b := range s.Bands {
		r, err := b.Reproject(dst)
		if err != nil {
			return Stack{}, eris.Wrapf(err, "raster: reproject band %d", i)
		}
		bands[i] = r
	}
	return Stack{Bands: bands, Labels: s.Labels}, nil
}

// celsiusPrecision is the step conversions are rounded to, so a value such as
// 287.95 K lands on 14.8 °C exactly instead of one ulp above it.
const celsiusPrecision = 1e9

// KelvinToCelsius returns a copy of g with 273.15 subtracted from every cell,
// rounded to 1e-9 °C.
func KelvinToCelsius(g *Grid) *Grid {
	out := g.Clone()
	for i, v := range out.Data {
		out.Data[i] = math.Round((v-KelvinOffset)*celsiusPrecision) / celsiusPrecision
	}
	return out
}
