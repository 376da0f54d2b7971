package region

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/aquasite/internal/raster"
)

// Rasterize assigns each cell of ref to the region containing the cell center.
// Where regions overlap the first region in set order wins. The set must be
// in ref's CRS.
func (s Set) Rasterize(ref *raster.Grid) (*raster.ZoneGrid, error) {
	if !s.CRS.Equal(ref.CRS) {
		return nil, eris.Errorf("region: rasterize %s regions onto %s grid", s.CRS, ref.CRS)
	}
	zones := raster.NewZoneGrid(ref, s.Labels())

	for zi, r := range s.Regions {
		if r.Geom == nil || r.Geom.Empty() {
			continue
		}
		b := r.Geom.Bounds()
		c0, c1 := cellSpan(b.Min(0), b.Max(0), ref.OriginX, ref.ResX, ref.Cols)
		r0, r1 := cellSpan(ref.OriginY-b.Max(1), ref.OriginY-b.Min(1), 0, ref.ResY, ref.Rows)

		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				i := row*ref.Cols + col
				if zones.Index[i] >= 0 {
					continue
				}
				x, y := ref.CellCenter(col, row)
				if containsPoint(r.Geom, x, y) {
					zones.Index[i] = zi
				}
			}
		}
	}
	return zones, nil
}

// cellSpan converts a coordinate interval to an inclusive, clamped cell range.
// An empty range has lo > hi.
func cellSpan(from, to, origin, res float64, n int) (int, int) {
	lo := int(math.Floor((from - origin) / res))
	hi := int(math.Floor((to - origin) / res))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// containsPoint reports whether x, y falls inside any polygon shell of mp and
// outside that polygon's holes. Points on a ring count as inside the ring.
func containsPoint(mp *geom.MultiPolygon, x, y float64) bool {
	p := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(mp.Layout(), p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for h := 1; h < poly.NumLinearRings(); h++ {
			if xy.IsPointInRing(mp.Layout(), p, poly.LinearRing(h).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
