package report

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/aquasite/internal/suitability"
)

// XLSX sheet names.
const (
	SummarySheet  = "Summary"
	CriteriaSheet = "Criteria"
)

// WriteXLSX writes the summary rows and the criteria of res to a workbook.
func WriteXLSX(path string, res *suitability.Result) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addStrings(sheet, "region", "suitable_cells", "area_m2", "area_km2", "cells", "no_data_cells")
	for _, r := range res.Summary {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Label)
		row.AddCell().SetInt(r.SuitableCells)
		row.AddCell().SetFloat(r.AreaM2)
		row.AddCell().SetFloat(r.AreaM2 / m2PerKm2)
		row.AddCell().SetInt(r.Cells)
		row.AddCell().SetInt(r.NoDataCells)
	}

	crit, err := f.AddSheet(CriteriaSheet)
	if err != nil {
		return eris.Wrap(err, "report: add criteria sheet")
	}
	c := res.Criteria
	addStrings(crit, "parameter", "value")
	addPair(crit, "temp_low_c", c.Temperature.Low)
	addPair(crit, "temp_high_c", c.Temperature.High)
	addPair(crit, "depth_low_m", c.Depth.Low)
	addPair(crit, "depth_high_m", c.Depth.High)
	addPair(crit, "cell_area_m2", res.CellAreaM2)
	addStrings(crit, "area_crs", res.AreaCRS.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "report: create output dir")
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, vals ...string) {
	row := sheet.AddRow()
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

func addPair(sheet *xlsx.Sheet, name string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(name)
	row.AddCell().SetFloat(v)
}
