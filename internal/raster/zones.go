package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// ZoneGrid assigns each cell of a reference geometry to a zone by index into
// Labels. Cells outside every zone hold -1.
type ZoneGrid struct {
	ref    *Grid
	Index  []int
	Labels []string
}

// NewZoneGrid allocates a zone grid over ref's geometry with no cell assigned.
func NewZoneGrid(ref *Grid, labels []string) *ZoneGrid {
	idx := make([]int, ref.Cols*ref.Rows)
	for i := range idx {
		idx[i] = -1
	}
	geom := *ref
	geom.Data = nil
	return &ZoneGrid{ref: &geom, Index: idx, Labels: labels}
}

// Grid renders the zone indices as a float grid, NaN outside every zone.
func (z *ZoneGrid) Grid() *Grid {
	out := *z.ref
	out.Data = make([]float64, len(z.Index))
	for i, v := range z.Index {
		if v < 0 {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = float64(v)
	}
	return &out
}

// Covered returns the number of cells assigned to any zone.
func (z *ZoneGrid) Covered() int {
	n := 0
	for _, v := range z.Index {
		if v >= 0 {
			n++
		}
	}
	return n
}

// ZoneStat aggregates a grid over one zone.
type ZoneStat struct {
	Label  string  `json:"label" yaml:"label"`
	Cells  int     `json:"cells" yaml:"cells"`
	Sum    float64 `json:"sum" yaml:"sum"`
	NoData int     `json:"no_data" yaml:"no_data"`
}

// ZonalSum sums the valid cells of g per zone. Every label gets a row, in label
// order, including zones with no cells.
func ZonalSum(g *Grid, z *ZoneGrid) ([]ZoneStat, error) {
	if al := CheckAlignment(g, z.ref); !al.OK {
		return nil, eris.Errorf("raster: zonal sum %s", al)
	}
	stats := make([]ZoneStat, len(z.Labels))
	for i, l := range z.Labels {
		stats[i].Label = l
	}
	for i, zi := range z.Index {
		if zi < 0 {
			continue
		}
		st := &stats[zi]
		st.Cells++
		if v := g.Data[i]; math.IsNaN(v) {
			st.NoData++
		} else {
			st.Sum += v
		}
	}
	return stats, nil
}
