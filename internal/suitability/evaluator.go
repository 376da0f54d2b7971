package suitability

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/region"
)

// Inputs are the datasets one evaluation runs over.
type Inputs struct {
	// Temperature is a yearly sea-surface temperature series in Kelvin.
	Temperature raster.Stack
	// Depth is bathymetry in meters, negative below sea level.
	Depth *raster.Grid
	// Regions are the boundaries to aggregate over. Their CRS is the
	// reference CRS for the run.
	Regions region.Set
}

// Prepared holds the inputs after CRS normalization, temporal reduction and
// alignment onto the temperature grid.
type Prepared struct {
	MeanTemperature *raster.Grid // °C
	Depth           *raster.Grid // m, resampled onto MeanTemperature
	Regions         region.Set
	Alignment       raster.Alignment
}

// RegionArea is one row of the per-region summary.
type RegionArea struct {
	Label         string  `json:"label" yaml:"label"`
	SuitableCells int     `json:"suitable_cells" yaml:"suitable_cells"`
	AreaM2        float64 `json:"area_m2" yaml:"area_m2"`
	Cells         int     `json:"cells" yaml:"cells"`
	NoDataCells   int     `json:"no_data_cells" yaml:"no_data_cells"`
}

// Result is everything one evaluation produces.
type Result struct {
	Criteria        Criteria
	Suitability     *raster.Grid // 0/1, reference CRS, temperature geometry
	Summary         []RegionArea // sorted by label
	Overlay         *Overlay
	CellAreaM2      float64
	AreaCRS         crs.CRS
	MeanTemperature *raster.Grid
	Depth           *raster.Grid
	Zones           *raster.ZoneGrid
	Alignment       raster.Alignment
	NoDataCells     int
}

// TotalSuitableCells sums suitable cells over all regions.
func (r *Result) TotalSuitableCells() int {
	n := 0
	for _, row := range r.Summary {
		n += row.SuitableCells
	}
	return n
}

// TotalAreaM2 sums suitable area over all regions.
func (r *Result) TotalAreaM2() float64 {
	return float64(r.TotalSuitableCells()) * r.CellAreaM2
}

// Evaluator runs the suitability pipeline.
type Evaluator struct {
	// AreaCRS is the metric CRS used to size cells. When zero, the UTM zone
	// containing the grid center is used.
	AreaCRS crs.CRS
	log     *zap.Logger
}

// NewEvaluator returns an Evaluator logging through the global zap logger.
func NewEvaluator(areaCRS crs.CRS) *Evaluator {
	return &Evaluator{AreaCRS: areaCRS, log: zap.L().With(zap.String("component", "suitability"))}
}

// Prepare normalizes every input to the region CRS, reduces the temperature
// series to its per-cell mean in °C, and resamples depth onto that grid. The
// returned Alignment reports whether the two grids line up; Prepare does not
// fail on misalignment so callers can report it.
func (e *Evaluator) Prepare(ctx context.Context, in Inputs) (*Prepared, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ref := in.Regions.CRS

	temps, err := in.Temperature.Reproject(ref)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: reproject temperature")
	}
	depth, err := in.Depth.Reproject(ref)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: reproject depth")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "suitability: prepare")
	}

	meanK := temps.Mean()
	if !meanK.HasData() {
		return nil, eris.Wrapf(ErrNoData, "temperature: all %d bands are empty", temps.Len())
	}
	meanC := raster.KelvinToCelsius(meanK)

	cropped, err := depth.Crop(meanC.Extent())
	if err != nil {
		return nil, eris.Wrap(err, "suitability: crop depth to temperature extent")
	}
	aligned, err := cropped.ResampleTo(meanC)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: resample depth")
	}
	if !aligned.HasData() {
		return nil, eris.Wrap(ErrNoData, "depth: no valid cells over the temperature grid")
	}

	al := raster.CheckAlignment(meanC, aligned)
	e.logger().Info("suitability: inputs prepared",
		zap.Stringer("crs", ref),
		zap.Int("cols", meanC.Cols),
		zap.Int("rows", meanC.Rows),
		zap.Int("bands", temps.Len()),
		zap.Bool("aligned", al.OK),
	)

	return &Prepared{
		MeanTemperature: meanC,
		Depth:           aligned,
		Regions:         in.Regions,
		Alignment:       al,
	}, nil
}

// Evaluate runs the full pipeline and fails with ErrMisaligned when the
// prepared grids do not line up.
func (e *Evaluator) Evaluate(ctx context.Context, in Inputs, c Criteria) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, err := e.Prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	if !p.Alignment.OK {
		return nil, eris.Wrapf(ErrMisaligned, "depth vs temperature: %s", p.Alignment.Reason)
	}

	tempOK := p.MeanTemperature.Reclassify(c.Temperature)
	depthOK := p.Depth.Reclassify(c.Depth)
	combined, err := raster.Multiply(tempOK, depthOK)
	if err != nil {
		return nil, eris.Wrap(ErrMisaligned, err.Error())
	}

	zones, err := p.Regions.Rasterize(p.MeanTemperature)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: rasterize regions")
	}
	masked, noData, err := raster.Mask(combined, zones)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: mask to regions")
	}
	stats, err := raster.ZonalSum(combined, zones)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: aggregate regions")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "suitability: evaluate")
	}

	areaCRS, cellArea, err := e.cellArea(masked)
	if err != nil {
		return nil, err
	}

	overlay, err := BuildOverlay(masked, zones, p.Regions)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Criteria:        c,
		Suitability:     masked,
		Summary:         summarize(stats, cellArea),
		Overlay:         overlay,
		CellAreaM2:      cellArea,
		AreaCRS:         areaCRS,
		MeanTemperature: p.MeanTemperature,
		Depth:           p.Depth,
		Zones:           zones,
		Alignment:       p.Alignment,
		NoDataCells:     noData,
	}

	e.logger().Info("suitability: evaluation complete",
		zap.Int("regions", len(res.Summary)),
		zap.Int("covered_cells", zones.Covered()),
		zap.Int("suitable_cells", res.TotalSuitableCells()),
		zap.Int("no_data_cells", noData),
		zap.Float64("cell_area_m2", cellArea),
		zap.Stringer("area_crs", areaCRS),
	)
	return res, nil
}

// cellArea reprojects g into the area CRS and returns the area of one cell.
func (e *Evaluator) cellArea(g *raster.Grid) (crs.CRS, float64, error) {
	areaCRS := e.AreaCRS
	if areaCRS.IsZero() {
		ext := g.Extent()
		toGeo, err := crs.NewTransformer(g.CRS, crs.WGS84)
		if err != nil {
			return crs.CRS{}, 0, eris.Wrap(err, "suitability: locate grid center")
		}
		lon, lat, err := toGeo(ext.MinX+ext.Width()/2, ext.MinY+ext.Height()/2)
		if err != nil {
			return crs.CRS{}, 0, eris.Wrap(err, "suitability: locate grid center")
		}
		if areaCRS, err = crs.UTMFor(lon, lat); err != nil {
			return crs.CRS{}, 0, err
		}
	}

	projected, err := g.Reproject(areaCRS)
	if err != nil {
		return crs.CRS{}, 0, eris.Wrapf(err, "suitability: reproject to %s for cell area", areaCRS)
	}
	return areaCRS, projected.ResX * projected.ResY, nil
}

func (e *Evaluator) logger() *zap.Logger {
	if e.log == nil {
		return zap.L()
	}
	return e.log
}

func (in Inputs) validate() error {
	if in.Temperature.Len() == 0 {
		return eris.New("suitability: no temperature bands")
	}
	if in.Depth == nil {
		return eris.New("suitability: no depth grid")
	}
	if len(in.Regions.Regions) == 0 {
		return eris.New("suitability: no regions")
	}
	if in.Regions.CRS.IsZero() {
		return eris.Wrap(crs.ErrNoCRS, "suitability: regions")
	}
	if in.Temperature.CRS().IsZero() {
		return eris.Wrap(crs.ErrNoCRS, "suitability: temperature")
	}
	if in.Depth.CRS.IsZero() {
		return eris.Wrap(crs.ErrNoCRS, "suitability: depth")
	}
	return nil
}

// summarize converts zone sums into area rows sorted by label.
func summarize(stats []raster.ZoneStat, cellArea float64) []RegionArea {
	rows := make([]RegionArea, len(stats))
	for i, s := range stats {
		n := int(s.Sum)
		rows[i] = RegionArea{
			Label:         s.Label,
			SuitableCells: n,
			AreaM2:        float64(n) * cellArea,
			Cells:         s.Cells,
			NoDataCells:   s.NoData,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}
