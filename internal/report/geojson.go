package report

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/aquasite/internal/suitability"
)

// FeatureCollection converts the overlay of res into GeoJSON features, one per
// suitable cell, each tagged with its region.
func FeatureCollection(ov *suitability.Overlay) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ov.Cells))}
	if len(ov.Cells) > 0 {
		b := geom.NewBounds(geom.XY)
		b.Set(ov.Bounds.MinX, ov.Bounds.MinY, ov.Bounds.MaxX, ov.Bounds.MaxY)
		fc.BBox = b
	}
	for i, cell := range ov.Cells {
		props := map[string]interface{}{"suitable": 1}
		if i < len(ov.Regions) && ov.Regions[i] != "" {
			props["region"] = ov.Regions[i]
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: cell, Properties: props})
	}
	return fc
}

// OutlineCollection converts the WGS84 region boundaries of ov into GeoJSON
// features labelled by region.
func OutlineCollection(ov *suitability.Overlay) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ov.Outlines.Regions))}
	for _, r := range ov.Outlines.Regions {
		if r.Geom == nil || r.Geom.Empty() {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   r.Geom,
			Properties: map[string]interface{}{"region": r.Label},
		})
	}
	return fc
}

// WriteGeoJSON writes the overlay as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, ov *suitability.Overlay) error {
	data, err := json.Marshal(FeatureCollection(ov))
	if err != nil {
		return eris.Wrap(err, "report: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "report: write geojson")
	}
	return nil
}
