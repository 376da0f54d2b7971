package region

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
)

// LoadOptions configures shapefile loading.
type LoadOptions struct {
	// LabelField is the attribute holding each region's label.
	LabelField string
	// CRS overrides the shapefile's .prj when set.
	CRS crs.CRS
}

// LoadShapefile reads polygon records from a shapefile. Records sharing a
// label are merged into one region; regions keep first-seen order.
func LoadShapefile(path string, opts LoadOptions) (Set, error) {
	ref, err := shapefileCRS(path, opts.CRS)
	if err != nil {
		return Set{}, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return Set{}, eris.Wrapf(err, "region: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	labelIdx := -1
	var names []string
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		names = append(names, name)
		if strings.EqualFold(name, opts.LabelField) {
			labelIdx = i
		}
	}
	if labelIdx < 0 {
		return Set{}, eris.Errorf("region: label field %q not in %s (fields: %s)",
			opts.LabelField, path, strings.Join(names, ", "))
	}

	byLabel := map[string]int{}
	var set Set
	set.CRS = ref
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		label := strings.TrimSpace(strings.TrimRight(reader.Attribute(labelIdx), "\x00"))
		if label == "" {
			return Set{}, eris.Errorf("region: record %d in %s has an empty %s", n, path, opts.LabelField)
		}

		mp := ToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}
		if ref.EPSG != 0 {
			mp.SetSRID(ref.EPSG)
		}

		if i, ok := byLabel[label]; ok {
			merged, err := mergeMultiPolygons(set.Regions[i].Geom, mp)
			if err != nil {
				return Set{}, eris.Wrapf(err, "region: merge %q", label)
			}
			set.Regions[i].Geom = merged
			continue
		}
		byLabel[label] = len(set.Regions)
		set.Regions = append(set.Regions, Region{Label: label, Geom: mp})
	}

	if skipped > 0 {
		zap.L().Debug("region: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(set.Regions) == 0 {
		return Set{}, eris.Errorf("region: no polygon records in %s", path)
	}
	return set, nil
}

// shapefileCRS resolves the CRS from the override or the sibling .prj file.
func shapefileCRS(path string, override crs.CRS) (crs.CRS, error) {
	if !override.IsZero() {
		return override, nil
	}
	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	wkt, err := os.ReadFile(prj)
	if errors.Is(err, fs.ErrNotExist) {
		return crs.CRS{}, eris.Wrapf(crs.ErrNoCRS, "region: %s has no .prj", path)
	}
	if err != nil {
		return crs.CRS{}, eris.Wrapf(err, "region: read %s", prj)
	}
	ref, err := crs.Parse(string(wkt))
	if err != nil {
		return crs.CRS{}, eris.Wrapf(err, "region: parse %s", prj)
	}
	return ref, nil
}

// ToMultiPolygon converts a go-shp polygon to a geom.MultiPolygon. Clockwise
// parts start a new polygon; counter-clockwise parts are holes of the polygon
// before them. Returns nil for non-polygon or empty shapes.
func ToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		if s == nil {
			return nil
		}
		parts, points = s.Parts, s.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var poly *geom.Polygon
	flush := func() {
		if poly == nil {
			return
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("region: skipping malformed polygon", zap.Error(err))
		}
		poly = nil
	}

	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 4 {
			zap.L().Debug("region: skipping degenerate ring", zap.Int("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if isOuter(flat, poly) {
			flush()
			poly = geom.NewPolygon(geom.XY)
		}
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("region: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// isOuter reports whether ring starts a new polygon: it is clockwise, there is
// no current polygon, or it lies outside the current polygon's shell.
func isOuter(flat []float64, poly *geom.Polygon) bool {
	if poly == nil || poly.NumLinearRings() == 0 || signedArea(flat) < 0 {
		return true
	}
	shell := poly.LinearRing(0).FlatCoords()
	return !xy.IsPointInRing(geom.XY, geom.Coord{flat[0], flat[1]}, shell)
}

// signedArea returns twice the signed area of a closed ring; negative values
// are clockwise.
func signedArea(flat []float64) float64 {
	var a float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return a
}

func mergeMultiPolygons(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	out := geom.NewMultiPolygon(geom.XY).SetSRID(a.SRID())
	for _, src := range []*geom.MultiPolygon{a, b} {
		for i := 0; i < src.NumPolygons(); i++ {
			if err := out.Push(src.Polygon(i)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
