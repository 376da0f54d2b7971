package raster

import (
	"fmt"
	"math"
)

// alignTolerance is the allowed origin/resolution drift in cell widths.
const alignTolerance = 1e-6

// Alignment is the outcome of comparing two grids cell for cell.
type Alignment struct {
	OK     bool   `json:"ok" yaml:"ok"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (a Alignment) String() string {
	if a.OK {
		return "aligned"
	}
	return "misaligned: " + a.Reason
}

// CheckAlignment reports whether a and b share CRS, extent and resolution, so
// that cell i of one covers the same ground as cell i of the other.
func CheckAlignment(a, b *Grid) Alignment {
	if !a.CRS.Equal(b.CRS) {
		return Alignment{Reason: fmt.Sprintf("crs %s != %s", a.CRS, b.CRS)}
	}
	eps := alignTolerance * math.Min(a.ResX, a.ResY)
	if math.Abs(a.ResX-b.ResX) > eps || math.Abs(a.ResY-b.ResY) > eps {
		return Alignment{Reason: fmt.Sprintf("resolution %gx%g != %gx%g", a.ResX, a.ResY, b.ResX, b.ResY)}
	}
	ea, eb := a.Extent(), b.Extent()
	if math.Abs(ea.MinX-eb.MinX) > eps || math.Abs(ea.MinY-eb.MinY) > eps ||
		math.Abs(ea.MaxX-eb.MaxX) > eps || math.Abs(ea.MaxY-eb.MaxY) > eps {
		return Alignment{Reason: fmt.Sprintf("extent %s != %s", ea, eb)}
	}
	if a.Cols != b.Cols || a.Rows != b.Rows {
		return Alignment{Reason: fmt.Sprintf("dimensions %dx%d != %dx%d", a.Cols, a.Rows, b.Cols, b.Rows)}
	}
	return Alignment{OK: true}
}
