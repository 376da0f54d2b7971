package suitability

import (
	"context"
	"math"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/region"
)

const (
	west  = -120.0
	north = 34.04
	res   = 0.01
)

// celsius converts a temperature to the Kelvin values the SST files carry.
func celsius(c float64) float64 { return c + raster.KelvinOffset }

func grid(t *testing.T, vals ...float64) *raster.Grid {
	t.Helper()
	g, err := raster.New(4, 4, west, north, res, res, crs.WGS84)
	require.NoError(t, err)
	switch len(vals) {
	case 1:
		g.Fill(vals[0])
	case 16:
		copy(g.Data, vals)
	default:
		t.Fatalf("grid needs 1 or 16 values, got %d", len(vals))
	}
	return g
}

func stack(t *testing.T, bands ...*raster.Grid) raster.Stack {
	t.Helper()
	s, err := raster.NewStack(bands, nil)
	require.NoError(t, err)
	return s
}

func boxRegion(t *testing.T, label string, minX, minY, maxX, maxY float64) region.Region {
	t.Helper()
	mp := region.ToMultiPolygon((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{{
		{X: minX, Y: minY}, {X: minX, Y: maxY}, {X: maxX, Y: maxY}, {X: maxX, Y: minY}, {X: minX, Y: minY},
	}})))
	require.NotNil(t, mp)
	return region.Region{Label: label, Geom: mp}
}

// fullCover is one region spanning the whole 4x4 test grid.
func fullCover(t *testing.T) region.Set {
	return region.Set{CRS: crs.WGS84, Regions: []region.Region{
		boxRegion(t, "Central California", west, north-4*res, west+4*res, north),
	}}
}

func evaluate(t *testing.T, in Inputs, c Criteria) *Result {
	t.Helper()
	res, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), in, c)
	require.NoError(t, err)
	return res
}

func assertBinary(t *testing.T, g *raster.Grid) {
	t.Helper()
	for i, v := range g.Data {
		assert.True(t, v == 0 || v == 1, "cell %d = %v", i, v)
	}
}

func TestEvaluate_AllSuitable(t *testing.T) {
	in := Inputs{
		Temperature: stack(t, grid(t, celsius(18))),
		Depth:       grid(t, -75),
		Regions:     fullCover(t),
	}
	res := evaluate(t, in, DefaultCriteria())

	assertBinary(t, res.Suitability)
	for i, v := range res.Suitability.Data {
		assert.Equal(t, 1.0, v, "cell %d", i)
	}
	require.Len(t, res.Summary, 1)
	row := res.Summary[0]
	assert.Equal(t, "Central California", row.Label)
	assert.Equal(t, 16, row.SuitableCells)
	assert.Equal(t, 16, row.Cells)
	assert.Greater(t, res.CellAreaM2, 0.0)
	assert.Equal(t, 16*res.CellAreaM2, row.AreaM2)
	assert.Equal(t, 32611, res.AreaCRS.EPSG, "UTM zone 11N covers the test extent")
	assert.Len(t, res.Overlay.Cells, 16)
	assert.Equal(t, "Central California", res.Overlay.Regions[0])
	assert.Equal(t, []string{"Central California"}, res.Overlay.Outlines.Labels())
	assert.True(t, res.Alignment.OK)
}

func TestEvaluate_AllUnsuitable(t *testing.T) {
	in := Inputs{
		Temperature: stack(t, grid(t, celsius(30))),
		Depth:       grid(t, -75),
		Regions:     fullCover(t),
	}
	res := evaluate(t, in, DefaultCriteria())

	for i, v := range res.Suitability.Data {
		assert.Equal(t, 0.0, v, "cell %d", i)
	}
	require.Len(t, res.Summary, 1)
	assert.Equal(t, 0, res.Summary[0].SuitableCells)
	assert.Equal(t, 0.0, res.Summary[0].AreaM2)
	assert.Empty(t, res.Overlay.Cells)
}

func TestEvaluate_TemperatureMeanAcrossYears(t *testing.T) {
	nan := math.NaN()
	// Mean of 10 and 26 is 18 (suitable) even though neither year is.
	y1 := grid(t, celsius(10))
	y2 := grid(t, celsius(26))
	// A year missing one cell must not blank that cell's mean.
	y3 := grid(t, celsius(18))
	y3.Data[5] = nan

	in := Inputs{Temperature: stack(t, y1, y2), Depth: grid(t, -75), Regions: fullCover(t)}
	res := evaluate(t, in, DefaultCriteria())
	assert.InDelta(t, 18, res.MeanTemperature.Data[0], 1e-9)
	assert.Equal(t, 16, res.Summary[0].SuitableCells)

	in.Temperature = stack(t, y3, grid(t, celsius(18)))
	res = evaluate(t, in, DefaultCriteria())
	assert.InDelta(t, 18, res.MeanTemperature.Data[5], 1e-9)
	assert.Equal(t, 16, res.Summary[0].SuitableCells)
}

func TestEvaluate_BinaryOutputWithGapsAndOutsideCells(t *testing.T) {
	nan := math.NaN()
	temps := grid(t,
		celsius(18), nan, celsius(18), celsius(30),
		celsius(18), celsius(18), celsius(10), celsius(18),
		nan, celsius(20), celsius(21), celsius(22),
		celsius(18), celsius(18), celsius(18), celsius(18),
	)
	depth := grid(t,
		-75, -75, nan, -75,
		-200, -75, -75, 10,
		-75, -75, -75, -75,
		-75, -75, -75, -75,
	)
	// Region covers the west three columns only.
	regions := region.Set{CRS: crs.WGS84, Regions: []region.Region{
		boxRegion(t, "west", west, north-4*res, west+3*res, north),
	}}

	res := evaluate(t, Inputs{Temperature: stack(t, temps), Depth: depth, Regions: regions}, DefaultCriteria())
	assertBinary(t, res.Suitability)

	want := []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 1, 1, 0,
		1, 1, 1, 0,
	}
	assert.Equal(t, want, res.Suitability.Data)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, 7, res.Summary[0].SuitableCells)
	assert.Equal(t, 12, res.Summary[0].Cells)
	assert.Equal(t, 3, res.Summary[0].NoDataCells)
	assert.Equal(t, 3, res.NoDataCells)
}

func TestEvaluate_Deterministic(t *testing.T) {
	nan := math.NaN()
	in := Inputs{
		Temperature: stack(t,
			grid(t, celsius(18), celsius(19), nan, celsius(25), celsius(14), celsius(15), celsius(16), celsius(17),
				celsius(18), celsius(19), celsius(20), celsius(21), celsius(22), celsius(23), celsius(24), celsius(12)),
			grid(t, celsius(17)),
		),
		Depth: grid(t, -10, -20, -160, -75, -75, 5, -149, -150, -1, 0, -75, -75, -75, -75, -300, -75),
		Regions: region.Set{CRS: crs.WGS84, Regions: []region.Region{
			boxRegion(t, "b", west, north-2*res, west+4*res, north),
			boxRegion(t, "a", west, north-4*res, west+4*res, north-2*res),
		}},
	}

	first := evaluate(t, in, DefaultCriteria())
	second := evaluate(t, in, DefaultCriteria())
	assert.Equal(t, first.Suitability.Data, second.Suitability.Data)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.CellAreaM2, second.CellAreaM2)
	assert.Equal(t, []string{"a", "b"}, []string{first.Summary[0].Label, first.Summary[1].Label}, "rows sorted by label")
}

func TestEvaluate_DepthBoundaries(t *testing.T) {
	// Depth needs no unit conversion, so exact bounds survive to classification.
	depth := grid(t,
		-150, 0, -150.0001, -149.9999,
		0.0001, -75, -75, -75,
		-75, -75, -75, -75,
		-75, -75, -75, -75,
	)
	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: depth, Regions: fullCover(t)}
	res := evaluate(t, in, DefaultCriteria())

	assert.Equal(t, 0.0, res.Suitability.Data[0], "depth == low is unsuitable")
	assert.Equal(t, 1.0, res.Suitability.Data[1], "depth == high is suitable")
	assert.Equal(t, 0.0, res.Suitability.Data[2])
	assert.Equal(t, 1.0, res.Suitability.Data[3])
	assert.Equal(t, 0.0, res.Suitability.Data[4])
}

func TestEvaluate_TemperatureBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		tempC float64
		want  int
	}{
		{name: "at low is unsuitable", tempC: 14.8, want: 0},
		{name: "at high is suitable", tempC: 22.3, want: 16},
		{name: "just above low", tempC: 14.81, want: 16},
		{name: "just above high", tempC: 22.31, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Inputs{
				Temperature: stack(t, grid(t, celsius(tt.tempC)), grid(t, celsius(tt.tempC))),
				Depth:       grid(t, -75),
				Regions:     fullCover(t),
			}
			res := evaluate(t, in, DefaultCriteria())
			assert.Equal(t, tt.tempC, res.MeanTemperature.Data[0])
			assert.Equal(t, tt.want, res.Summary[0].SuitableCells)
		})
	}
}

func TestEvaluate_CombinationLaw(t *testing.T) {
	temps := make([]float64, 16)
	depths := make([]float64, 16)
	for i := range temps {
		temps[i] = celsius(12 + float64(i))
		depths[i] = -200 + float64(i*17)
	}
	c := DefaultCriteria()
	res := evaluate(t, Inputs{Temperature: stack(t, grid(t, temps...)), Depth: grid(t, depths...), Regions: fullCover(t)}, c)

	for i := range res.Suitability.Data {
		tOK := c.Temperature.Classify(res.MeanTemperature.Data[i]) == 1
		dOK := c.Depth.Classify(res.Depth.Data[i]) == 1
		want := 0.0
		if tOK && dOK {
			want = 1
		}
		assert.Equal(t, want, res.Suitability.Data[i], "cell %d", i)
	}
}

func TestEvaluate_AreaIdentityPerRegion(t *testing.T) {
	in := Inputs{
		Temperature: stack(t, grid(t, celsius(18))),
		Depth:       grid(t, -75, -75, -75, -75, -75, -75, -75, -75, 50, 50, -75, -75, -75, -75, -75, -75),
		Regions: region.Set{CRS: crs.WGS84, Regions: []region.Region{
			boxRegion(t, "north", west, north-2*res, west+4*res, north),
			boxRegion(t, "south", west, north-4*res, west+4*res, north-2*res),
			boxRegion(t, "far away", -125, 30, -124, 31),
		}},
	}
	res := evaluate(t, in, DefaultCriteria())

	require.Len(t, res.Summary, 3)
	byLabel := map[string]RegionArea{}
	for _, row := range res.Summary {
		assert.Equal(t, float64(row.SuitableCells)*res.CellAreaM2, row.AreaM2, row.Label)
		byLabel[row.Label] = row
	}
	assert.Equal(t, 8, byLabel["north"].SuitableCells)
	assert.Equal(t, 6, byLabel["south"].SuitableCells)
	assert.Equal(t, RegionArea{Label: "far away"}, byLabel["far away"], "no overlap yields a zero row")
	assert.Equal(t, 14, res.TotalSuitableCells())
	assert.Equal(t, 14*res.CellAreaM2, res.TotalAreaM2())
}

func TestEvaluate_MismatchedCRSReprojectsBeforeAlignment(t *testing.T) {
	utm, err := crs.FromEPSG(32611)
	require.NoError(t, err)

	// Depth delivered in UTM 11N at 500 m, well beyond the temperature extent.
	depth, err := raster.New(120, 120, 200000, 3800000, 500, 500, utm)
	require.NoError(t, err)
	depth.Fill(-75)

	in := Inputs{
		Temperature: stack(t, grid(t, celsius(18))),
		Depth:       depth,
		Regions:     fullCover(t),
	}
	res := evaluate(t, in, DefaultCriteria())

	ref := in.Regions.CRS
	assert.True(t, res.MeanTemperature.CRS.Equal(ref))
	assert.True(t, res.Depth.CRS.Equal(ref))
	assert.True(t, res.Suitability.CRS.Equal(ref))
	assert.True(t, res.Zones.Grid().CRS.Equal(ref))
	assert.True(t, raster.CheckAlignment(res.MeanTemperature, res.Depth).OK)
	assert.Equal(t, 16, res.Summary[0].SuitableCells)
	assert.True(t, in.Depth.CRS.Equal(utm), "inputs are not mutated")
}

func TestEvaluate_TemperatureInOtherCRS(t *testing.T) {
	utm, err := crs.FromEPSG(32611)
	require.NoError(t, err)
	temps, err := raster.New(60, 60, 210000, 3785000, 1000, 1000, utm)
	require.NoError(t, err)
	temps.Fill(celsius(18))
	depth, err := raster.New(60, 60, 210000, 3785000, 1000, 1000, utm)
	require.NoError(t, err)
	depth.Fill(-75)

	res := evaluate(t, Inputs{Temperature: stack(t, temps), Depth: depth, Regions: fullCover(t)}, DefaultCriteria())
	assert.True(t, res.Suitability.CRS.Equal(crs.WGS84))
	assert.Greater(t, res.TotalSuitableCells(), 0)
	assertBinary(t, res.Suitability)
}

func TestEvaluate_ConfiguredAreaCRS(t *testing.T) {
	albers, err := crs.FromEPSG(3310)
	require.NoError(t, err)
	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, -75), Regions: fullCover(t)}

	res, err := NewEvaluator(albers).Evaluate(context.Background(), in, DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, 3310, res.AreaCRS.EPSG)
	assert.Equal(t, 16*res.CellAreaM2, res.Summary[0].AreaM2)
}

func TestEvaluate_InvalidCriteria(t *testing.T) {
	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, -75), Regions: fullCover(t)}

	tests := []struct {
		name string
		c    Criteria
		msg  string
	}{
		{name: "temperature inverted", c: Criteria{Temperature: raster.Range{Low: 22.3, High: 14.8}, Depth: DefaultCriteria().Depth}, msg: "temperature"},
		{name: "temperature equal", c: Criteria{Temperature: raster.Range{Low: 18, High: 18}, Depth: DefaultCriteria().Depth}, msg: "temperature"},
		{name: "depth inverted", c: Criteria{Temperature: DefaultCriteria().Temperature, Depth: raster.Range{Low: 0, High: -150}}, msg: "depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), in, tt.c)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidCriteria))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEvaluate_AllMissingTemperatureIsNoData(t *testing.T) {
	in := Inputs{
		Temperature: stack(t, grid(t, math.NaN()), grid(t, math.NaN())),
		Depth:       grid(t, -75),
		Regions:     fullCover(t),
	}
	_, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), in, DefaultCriteria())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "temperature")
}

func TestEvaluate_AllMissingDepthIsNoData(t *testing.T) {
	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, math.NaN()), Regions: fullCover(t)}
	_, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), in, DefaultCriteria())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "depth")
}

func TestEvaluate_MissingInputs(t *testing.T) {
	ok := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, -75), Regions: fullCover(t)}

	noDepth := ok
	noDepth.Depth = nil

	noRegions := ok
	noRegions.Regions = region.Set{CRS: crs.WGS84}

	noCRS := ok
	noCRS.Depth = grid(t, -75)
	noCRS.Depth.CRS = crs.CRS{}

	tests := []struct {
		name string
		in   Inputs
		msg  string
	}{
		{name: "no temperature", in: Inputs{Depth: ok.Depth, Regions: ok.Regions}, msg: "no temperature"},
		{name: "no depth", in: noDepth, msg: "no depth"},
		{name: "no regions", in: noRegions, msg: "no regions"},
		{name: "depth without crs", in: noCRS, msg: "depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), tt.in, DefaultCriteria())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	_, err := NewEvaluator(crs.CRS{}).Evaluate(context.Background(), noCRS, DefaultCriteria())
	assert.True(t, eris.Is(err, crs.ErrNoCRS))
}

func TestEvaluate_DepthOutsideTemperatureExtent(t *testing.T) {
	far, err := raster.New(4, 4, 10, 10, res, res, crs.WGS84)
	require.NoError(t, err)
	far.Fill(-75)

	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: far, Regions: fullCover(t)}
	_, err = NewEvaluator(crs.CRS{}).Evaluate(context.Background(), in, DefaultCriteria())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crop depth")
}

func TestEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, -75), Regions: fullCover(t)}
	_, err := NewEvaluator(crs.CRS{}).Evaluate(ctx, in, DefaultCriteria())
	require.Error(t, err)
	assert.Contains(t, err.Error(), context.Canceled.Error())
}

func TestPrepare_ReportsAlignment(t *testing.T) {
	in := Inputs{Temperature: stack(t, grid(t, celsius(18))), Depth: grid(t, -75), Regions: fullCover(t)}
	p, err := NewEvaluator(crs.CRS{}).Prepare(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, p.Alignment.OK)
	assert.InDelta(t, 18, p.MeanTemperature.Data[0], 1e-9)
	assert.Equal(t, -75.0, p.Depth.Data[15])
}

func TestBuildOverlay(t *testing.T) {
	g := grid(t, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1)
	ov, err := BuildOverlay(g, nil, region.Set{})
	require.NoError(t, err)
	require.Len(t, ov.Cells, 2)
	assert.Equal(t, []string{"", ""}, ov.Regions)
	assert.Empty(t, ov.Outlines.Regions)

	b := ov.Cells[0].Bounds()
	assert.InDelta(t, west, b.Min(0), 1e-12)
	assert.InDelta(t, north, b.Max(1), 1e-12)
	assert.InDelta(t, west+res, b.Max(0), 1e-12)

	assert.InDelta(t, west, ov.Bounds.MinX, 1e-12)
	assert.InDelta(t, north-4*res, ov.Bounds.MinY, 1e-12)
}

func TestBuildOverlay_OutlinesInWGS84(t *testing.T) {
	utm, err := crs.FromEPSG(32611)
	require.NoError(t, err)
	regions, err := fullCover(t).Reproject(utm)
	require.NoError(t, err)
	g, err := raster.New(4, 4, 0, 0, 1000, 1000, utm)
	require.NoError(t, err)

	ov, err := BuildOverlay(g, nil, regions)
	require.NoError(t, err)
	assert.Empty(t, ov.Cells)
	require.Len(t, ov.Outlines.Regions, 1)
	assert.True(t, ov.Outlines.CRS.Equal(crs.WGS84))
	assert.Equal(t, "Central California", ov.Outlines.Regions[0].Label)

	ext, err := ov.Outlines.Extent()
	require.NoError(t, err)
	assert.InDelta(t, west, ext.MinX, 1e-6)
	assert.InDelta(t, north, ext.MaxY, 1e-6)
	assert.InDelta(t, west+4*res, ext.MaxX, 1e-6)
	assert.InDelta(t, north-4*res, ext.MinY, 1e-6)
}
