// Package report renders an evaluation result as a text table, an XLSX
// workbook, a GeoJSON overlay, a Leaflet map, a YAML manifest and a GeoTIFF.
package report

import (
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/aquasite/internal/suitability"
)

const m2PerKm2 = 1e6

// WriteTable writes the per-region summary as an aligned text table with
// thousands separators.
func WriteTable(w io.Writer, res *suitability.Result) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	p.Fprintf(tw, "Region\tSuitable cells\tArea (km²)\tNo-data cells\t\n")
	for _, row := range res.Summary {
		p.Fprintf(tw, "%s\t%d\t%.2f\t%d\t\n", row.Label, row.SuitableCells, row.AreaM2/m2PerKm2, row.NoDataCells)
	}
	p.Fprintf(tw, "Total\t%d\t%.2f\t%d\t\n", res.TotalSuitableCells(), res.TotalAreaM2()/m2PerKm2, res.NoDataCells)

	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: write table")
	}
	p.Fprintf(w, "\ncell area %.1f m² in %s\n", res.CellAreaM2, res.AreaCRS)
	return nil
}
