package suitability

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/region"
)

// Overlay is the map-ready form of a suitability grid: one WGS84 polygon per
// suitable cell. Unsuitable cells are left out so they render transparent.
type Overlay struct {
	Cells    []*geom.Polygon
	Regions  []string      // region label of each cell, parallel to Cells
	Bounds   raster.Extent // WGS84 bounds of the whole grid
	Outlines region.Set    // region boundaries in WGS84
}

// BuildOverlay converts cells equal to 1 into WGS84 polygons. zones may be nil,
// in which case cells carry no region label. regions, when non-empty, are
// reprojected to WGS84 as outlines.
func BuildOverlay(g *raster.Grid, zones *raster.ZoneGrid, regions region.Set) (*Overlay, error) {
	toGeo, err := crs.NewTransformer(g.CRS, crs.WGS84)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: overlay transform")
	}

	corner := func(col, row int) (geom.Coord, error) {
		x := g.OriginX + float64(col)*g.ResX
		y := g.OriginY - float64(row)*g.ResY
		lon, lat, err := toGeo(x, y)
		if err != nil {
			return nil, err
		}
		return geom.Coord{lon, lat}, nil
	}

	ov := &Overlay{Bounds: raster.Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}}
	for _, cr := range [][2]int{{0, 0}, {g.Cols, 0}, {g.Cols, g.Rows}, {0, g.Rows}} {
		c, err := corner(cr[0], cr[1])
		if err != nil {
			return nil, eris.Wrap(err, "suitability: overlay bounds")
		}
		ov.Bounds.MinX = math.Min(ov.Bounds.MinX, c[0])
		ov.Bounds.MinY = math.Min(ov.Bounds.MinY, c[1])
		ov.Bounds.MaxX = math.Max(ov.Bounds.MaxX, c[0])
		ov.Bounds.MaxY = math.Max(ov.Bounds.MaxY, c[1])
	}

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if g.At(col, row) != 1 {
				continue
			}
			ring := make([]geom.Coord, 0, 5)
			for _, cr := range [][2]int{{col, row}, {col + 1, row}, {col + 1, row + 1}, {col, row + 1}, {col, row}} {
				c, err := corner(cr[0], cr[1])
				if err != nil {
					return nil, eris.Wrapf(err, "suitability: overlay cell %d,%d", col, row)
				}
				ring = append(ring, c)
			}
			poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
			if err != nil {
				return nil, eris.Wrap(err, "suitability: overlay polygon")
			}
			ov.Cells = append(ov.Cells, poly)
			label := ""
			if zones != nil {
				if zi := zones.Index[row*g.Cols+col]; zi >= 0 {
					label = zones.Labels[zi]
				}
			}
			ov.Regions = append(ov.Regions, label)
		}
	}

	if len(regions.Regions) > 0 {
		if ov.Outlines, err = regions.Reproject(crs.WGS84); err != nil {
			return nil, eris.Wrap(err, "suitability: overlay outlines")
		}
	}
	return ov, nil
}
