// Package region loads labelled boundary polygons (e.g. EEZ zones) and burns
// them onto raster grids.
package region

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
)

// Region is one labelled boundary.
type Region struct {
	Label string
	Geom  *geom.MultiPolygon
}

// Set is an ordered collection of regions sharing a CRS.
type Set struct {
	Regions []Region
	CRS     crs.CRS
}

// Labels returns region labels in set order.
func (s Set) Labels() []string {
	out := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		out[i] = r.Label
	}
	return out
}

// Extent returns the combined bounds of every region.
func (s Set) Extent() (raster.Extent, error) {
	ext := raster.Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	n := 0
	for _, r := range s.Regions {
		if r.Geom == nil || r.Geom.Empty() {
			continue
		}
		b := r.Geom.Bounds()
		ext.MinX = math.Min(ext.MinX, b.Min(0))
		ext.MinY = math.Min(ext.MinY, b.Min(1))
		ext.MaxX = math.Max(ext.MaxX, b.Max(0))
		ext.MaxY = math.Max(ext.MaxY, b.Max(1))
		n++
	}
	if n == 0 {
		return raster.Extent{}, eris.New("region: set has no geometry")
	}
	return ext, nil
}

// Reproject transforms every region into dst. A set already in dst is returned
// unchanged.
func (s Set) Reproject(dst crs.CRS) (Set, error) {
	if s.CRS.Equal(dst) {
		return s, nil
	}
	t, err := crs.NewTransformer(s.CRS, dst)
	if err != nil {
		return Set{}, eris.Wrap(err, "region: reproject")
	}

	out := Set{Regions: make([]Region, len(s.Regions)), CRS: dst}
	for i, r := range s.Regions {
		flat := append([]float64(nil), r.Geom.FlatCoords()...)
		stride := r.Geom.Stride()
		for j := 0; j+1 < len(flat); j += stride {
			x, y, err := t(flat[j], flat[j+1])
			if err != nil {
				return Set{}, eris.Wrapf(err, "region: reproject %q", r.Label)
			}
			flat[j], flat[j+1] = x, y
		}
		endss := make([][]int, 0, len(r.Geom.Endss()))
		for _, ends := range r.Geom.Endss() {
			endss = append(endss, append([]int(nil), ends...))
		}
		mp := geom.NewMultiPolygonFlat(r.Geom.Layout(), flat, endss)
		if dst.EPSG != 0 {
			mp.SetSRID(dst.EPSG)
		}
		out.Regions[i] = Region{Label: r.Label, Geom: mp}
	}
	return out, nil
}
