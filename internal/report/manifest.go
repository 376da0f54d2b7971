package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/aquasite/internal/suitability"
)

// Manifest records what a run read, which parameters it used and what it
// produced.
type Manifest struct {
	RunID       string                   `yaml:"run_id,omitempty"`
	GeneratedAt time.Time                `yaml:"generated_at"`
	Inputs      ManifestInputs           `yaml:"inputs"`
	Criteria    suitability.Criteria     `yaml:"criteria"`
	Grid        ManifestGrid             `yaml:"grid"`
	Totals      ManifestTotals           `yaml:"totals"`
	Regions     []suitability.RegionArea `yaml:"regions"`
	Outputs     []string                 `yaml:"outputs,omitempty"`
}

// ManifestInputs lists the files a run read.
type ManifestInputs struct {
	SST       []string `yaml:"sst"`
	StartYear int      `yaml:"start_year"`
	EndYear   int      `yaml:"end_year"`
	Depth     string   `yaml:"depth"`
	Regions   string   `yaml:"regions"`
}

// ManifestGrid describes the working grid.
type ManifestGrid struct {
	CRS        string  `yaml:"crs"`
	Cols       int     `yaml:"cols"`
	Rows       int     `yaml:"rows"`
	ResX       float64 `yaml:"res_x"`
	ResY       float64 `yaml:"res_y"`
	AreaCRS    string  `yaml:"area_crs"`
	CellAreaM2 float64 `yaml:"cell_area_m2"`
	Alignment  string  `yaml:"alignment"`
}

// ManifestTotals sums the per-region rows.
type ManifestTotals struct {
	SuitableCells int     `yaml:"suitable_cells"`
	AreaM2        float64 `yaml:"area_m2"`
	NoDataCells   int     `yaml:"no_data_cells"`
}

// NewManifest fills the result-derived parts of a manifest.
func NewManifest(res *suitability.Result, inputs ManifestInputs, now time.Time) Manifest {
	g := res.Suitability
	return Manifest{
		GeneratedAt: now.UTC(),
		Inputs:      inputs,
		Criteria:    res.Criteria,
		Grid: ManifestGrid{
			CRS:        g.CRS.String(),
			Cols:       g.Cols,
			Rows:       g.Rows,
			ResX:       g.ResX,
			ResY:       g.ResY,
			AreaCRS:    res.AreaCRS.String(),
			CellAreaM2: res.CellAreaM2,
			Alignment:  res.Alignment.String(),
		},
		Totals: ManifestTotals{
			SuitableCells: res.TotalSuitableCells(),
			AreaM2:        res.TotalAreaM2(),
			NoDataCells:   res.NoDataCells,
		},
		Regions: res.Summary,
	}
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return eris.Wrap(err, "report: encode manifest")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: encode manifest")
	}
	return nil
}
