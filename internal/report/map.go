package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/suitability"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

// MapOptions configures the HTML map.
type MapOptions struct {
	Title string
	Color string // fill color of suitable cells
}

type mapRow struct {
	Label string
	Area  string
}

type mapData struct {
	Title    string
	Color    string
	Criteria string
	GeoJSON  template.JS
	Outlines template.JS
	Bounds   raster.Extent
	Rows     []mapRow
}

// WriteMap writes a standalone Leaflet page showing the suitable cells of res
// over a basemap with a per-region legend.
func WriteMap(w io.Writer, res *suitability.Result, opts MapOptions) error {
	if opts.Title == "" {
		opts.Title = "Suitable area"
	}
	if opts.Color == "" {
		opts.Color = "#1f78b4"
	}

	fc, err := json.Marshal(FeatureCollection(res.Overlay))
	if err != nil {
		return eris.Wrap(err, "report: encode map overlay")
	}
	outlines, err := json.Marshal(OutlineCollection(res.Overlay))
	if err != nil {
		return eris.Wrap(err, "report: encode map outlines")
	}

	p := message.NewPrinter(language.English)
	c := res.Criteria
	data := mapData{
		Title:    opts.Title,
		Color:    opts.Color,
		Criteria: p.Sprintf("SST %.1f to %.1f °C, depth %.0f to %.0f m",
			c.Temperature.Low, c.Temperature.High, c.Depth.Low, c.Depth.High),
		GeoJSON:  template.JS(fc),       //nolint:gosec // marshaled by encoding/json
		Outlines: template.JS(outlines), //nolint:gosec // marshaled by encoding/json
		Bounds:   res.Overlay.Bounds,
	}
	for _, row := range res.Summary {
		data.Rows = append(data.Rows, mapRow{Label: row.Label, Area: p.Sprintf("%.2f", row.AreaM2/m2PerKm2)})
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, data); err != nil {
		return eris.Wrap(err, "report: render map")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "report: write map")
	}
	return nil
}
