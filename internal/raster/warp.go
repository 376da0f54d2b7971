package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aquasite/internal/crs"
)

// edgeSamples is the number of points sampled along each grid edge when
// projecting the extent into another CRS.
const edgeSamples = 21

// Reproject warps g into dst with nearest-neighbour sampling. A grid already in
// dst is returned as is. The output uses square cells sized so the extent
// diagonal spans the same number of cells as the source.
func (g *Grid) Reproject(dst crs.CRS) (*Grid, error) {
	if g.CRS.IsZero() || dst.IsZero() {
		return nil, crs.ErrNoCRS
	}
	if g.CRS.Equal(dst) {
		return g, nil
	}

	fwd, err := crs.NewTransformer(g.CRS, dst)
	if err != nil {
		return nil, err
	}
	inv, err := crs.NewTransformer(dst, g.CRS)
	if err != nil {
		return nil, err
	}

	ext, err := projectExtent(g.Extent(), fwd)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: project extent %s to %s", g.Extent(), dst)
	}

	res := math.Hypot(ext.Width(), ext.Height()) / math.Hypot(float64(g.Cols), float64(g.Rows))
	cols := int(math.Max(1, math.Ceil(ext.Width()/res-1e-9)))
	rows := int(math.Max(1, math.Ceil(ext.Height()/res-1e-9)))

	out, err := New(cols, rows, ext.MinX, ext.MaxY, res, res, dst)
	if err != nil {
		return nil, eris.Wrap(err, "raster: allocate reprojected grid")
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := out.CellCenter(col, row)
			sx, sy, err := inv(x, y)
			if err != nil {
				continue
			}
			out.Set(col, row, g.Sample(sx, sy))
		}
	}
	return out, nil
}

// projectExtent transforms a densified outline of ext and returns its bounds.
func projectExtent(ext Extent, t crs.Transformer) (Extent, error) {
	out := Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	n := 0
	add := func(x, y float64) {
		px, py, err := t(x, y)
		if err != nil || math.IsNaN(px) || math.IsNaN(py) || math.IsInf(px, 0) || math.IsInf(py, 0) {
			return
		}
		out.MinX = math.Min(out.MinX, px)
		out.MinY = math.Min(out.MinY, py)
		out.MaxX = math.Max(out.MaxX, px)
		out.MaxY = math.Max(out.MaxY, py)
		n++
	}
	for i := 0; i < edgeSamples; i++ {
		f := float64(i) / float64(edgeSamples-1)
		x := ext.MinX + f*ext.Width()
		y := ext.MinY + f*ext.Height()
		add(x, ext.MinY)
		add(x, ext.MaxY)
		add(ext.MinX, y)
		add(ext.MaxX, y)
	}
	if n == 0 || !(out.MinX < out.MaxX) || !(out.MinY < out.MaxY) {
		return Extent{}, eris.New("raster: extent does not project")
	}
	return out, nil
}

// Crop returns the cells of g that intersect ext, snapped outward to whole
// cells. It fails when ext does not overlap the grid.
func (g *Grid) Crop(ext Extent) (*Grid, error) {
	overlap, ok := g.Extent().Intersect(ext)
	if !ok {
		return nil, eris.Errorf("raster: crop extent %s does not overlap grid %s", ext, g.Extent())
	}

	const snap = 1e-9
	c0 := int(math.Floor((overlap.MinX-g.OriginX)/g.ResX + snap))
	c1 := int(math.Ceil((overlap.MaxX-g.OriginX)/g.ResX - snap))
	r0 := int(math.Floor((g.OriginY-overlap.MaxY)/g.ResY + snap))
	r1 := int(math.Ceil((g.OriginY-overlap.MinY)/g.ResY - snap))
	c0, c1 = clamp(c0, 0, g.Cols-1), clamp(c1, c0+1, g.Cols)
	r0, r1 = clamp(r0, 0, g.Rows-1), clamp(r1, r0+1, g.Rows)

	out, err := New(c1-c0, r1-r0,
		g.OriginX+float64(c0)*g.ResX, g.OriginY-float64(r0)*g.ResY,
		g.ResX, g.ResY, g.CRS)
	if err != nil {
		return nil, err
	}
	for row := r0; row < r1; row++ {
		copy(out.Data[(row-r0)*out.Cols:(row-r0+1)*out.Cols], g.Data[row*g.Cols+c0:row*g.Cols+c1])
	}
	return out, nil
}

// ResampleTo samples g onto ref's extent and resolution using the nearest cell.
// Both grids must share a CRS. Reference cells outside g are NaN.
func (g *Grid) ResampleTo(ref *Grid) (*Grid, error) {
	if !g.CRS.Equal(ref.CRS) {
		return nil, eris.Errorf("raster: resample across CRS %s -> %s", g.CRS, ref.CRS)
	}
	out := ref.Like()
	for row := 0; row < out.Rows; row++ {
		for col := 0; col < out.Cols; col++ {
			x, y := out.CellCenter(col, row)
			out.Set(col, row, g.Sample(x, y))
		}
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
