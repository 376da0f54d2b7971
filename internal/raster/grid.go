// Package raster holds north-up gridded scalar fields and the operations the
// suitability pipeline runs over them: reprojection, cropping, nearest-neighbour
// resampling, reclassification, combination and masking.
package raster

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/aquasite/internal/crs"
)

// Extent is an axis-aligned bounding box in CRS units.
type Extent struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Width returns the east-west span.
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns the north-south span.
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Intersect returns the overlap of e and o and whether it is non-empty.
func (e Extent) Intersect(o Extent) (Extent, bool) {
	out := Extent{
		MinX: math.Max(e.MinX, o.MinX),
		MinY: math.Max(e.MinY, o.MinY),
		MaxX: math.Min(e.MaxX, o.MaxX),
		MaxY: math.Min(e.MaxY, o.MaxY),
	}
	return out, out.MinX < out.MaxX && out.MinY < out.MaxY
}

func (e Extent) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// Grid is a single-band, north-up raster. Cells are stored row-major from the
// top-left corner; missing values are NaN.
type Grid struct {
	Cols    int
	Rows    int
	OriginX float64 // west edge
	OriginY float64 // north edge
	ResX    float64 // cell width, positive
	ResY    float64 // cell height, positive
	CRS     crs.CRS
	Data    []float64
}

// New allocates a grid with every cell set to NaN.
func New(cols, rows int, originX, originY, resX, resY float64, ref crs.CRS) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, eris.Errorf("raster: invalid dimensions %dx%d", cols, rows)
	}
	if !(resX > 0) || !(resY > 0) {
		return nil, eris.Errorf("raster: invalid resolution %gx%g", resX, resY)
	}
	g := &Grid{
		Cols: cols, Rows: rows,
		OriginX: originX, OriginY: originY,
		ResX: resX, ResY: resY,
		CRS:  ref,
		Data: make([]float64, cols*rows),
	}
	return g.Fill(math.NaN()), nil
}

// Fill sets every cell to v and returns g.
func (g *Grid) Fill(v float64) *Grid {
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// Like allocates an all-NaN grid with the same geometry and CRS as g.
func (g *Grid) Like() *Grid {
	out, _ := New(g.Cols, g.Rows, g.OriginX, g.OriginY, g.ResX, g.ResY, g.CRS)
	return out
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = append([]float64(nil), g.Data...)
	return &out
}

// Extent returns the outer bounds of the grid.
func (g *Grid) Extent() Extent {
	return Extent{
		MinX: g.OriginX,
		MinY: g.OriginY - float64(g.Rows)*g.ResY,
		MaxX: g.OriginX + float64(g.Cols)*g.ResX,
		MaxY: g.OriginY,
	}
}

// At returns the value at col, row.
func (g *Grid) At(col, row int) float64 { return g.Data[row*g.Cols+col] }

// Set stores v at col, row.
func (g *Grid) Set(col, row int, v float64) { g.Data[row*g.Cols+col] = v }

// CellCenter returns the CRS coordinate of the center of a cell.
func (g *Grid) CellCenter(col, row int) (float64, float64) {
	return g.OriginX + (float64(col)+0.5)*g.ResX, g.OriginY - (float64(row)+0.5)*g.ResY
}

// CellAt locates the cell containing x, y. The west and north cell edges are
// inclusive.
func (g *Grid) CellAt(x, y float64) (col, row int, ok bool) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, false
	}
	fc := math.Floor((x - g.OriginX) / g.ResX)
	fr := math.Floor((g.OriginY - y) / g.ResY)
	if fc < 0 || fr < 0 || fc >= float64(g.Cols) || fr >= float64(g.Rows) {
		return 0, 0, false
	}
	return int(fc), int(fr), true
}

// Sample returns the value of the cell containing x, y, or NaN outside the grid.
func (g *Grid) Sample(x, y float64) float64 {
	col, row, ok := g.CellAt(x, y)
	if !ok {
		return math.NaN()
	}
	return g.At(col, row)
}

// Stats summarizes the valid (non-NaN) cells of a grid.
type Stats struct {
	Cells int     `json:"cells" yaml:"cells"`
	Valid int     `json:"valid" yaml:"valid"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Sum   float64 `json:"sum" yaml:"sum"`
}

// Stats computes summary statistics over valid cells. Min, Max and Mean are
// NaN when no cell is valid.
func (g *Grid) Stats() Stats {
	valid := g.validValues()
	s := Stats{Cells: len(g.Data), Valid: len(valid)}
	if len(valid) == 0 {
		s.Min, s.Max, s.Mean = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Sum = floats.Sum(valid)
	s.Mean = stat.Mean(valid, nil)
	return s
}

// HasData reports whether at least one cell is not NaN.
func (g *Grid) HasData() bool {
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

func (g *Grid) validValues() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// sameGeometry reports whether two grids share dimensions, origin and
// resolution within tol cell widths.
func sameGeometry(a, b *Grid, tol float64) bool {
	if a.Cols != b.Cols || a.Rows != b.Rows {
		return false
	}
	eps := tol * math.Min(a.ResX, a.ResY)
	return math.Abs(a.OriginX-b.OriginX) <= eps &&
		math.Abs(a.OriginY-b.OriginY) <= eps &&
		math.Abs(a.ResX-b.ResX) <= eps &&
		math.Abs(a.ResY-b.ResY) <= eps
}
