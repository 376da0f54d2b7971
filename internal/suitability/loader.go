package suitability

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/region"
)

// Sources names the on-disk inputs of a run.
type Sources struct {
	Dir         string
	SSTPattern  string // fmt pattern taking the year, e.g. average_annual_sst_%d.tif
	StartYear   int
	EndYear     int
	DepthFile   string
	RegionsFile string
	LabelField  string

	// Optional CRS overrides for inputs that carry none.
	RasterCRS  crs.CRS
	RegionsCRS crs.CRS
}

// SSTPaths returns the yearly temperature files for the year range.
func (s Sources) SSTPaths() ([]string, error) {
	if s.StartYear > s.EndYear {
		return nil, eris.Errorf("suitability: start year %d after end year %d", s.StartYear, s.EndYear)
	}
	paths := make([]string, 0, s.EndYear-s.StartYear+1)
	for y := s.StartYear; y <= s.EndYear; y++ {
		paths = append(paths, s.path(fmt.Sprintf(s.SSTPattern, y)))
	}
	return paths, nil
}

// DepthPath returns the bathymetry file location.
func (s Sources) DepthPath() string { return s.path(s.DepthFile) }

// RegionsPath returns the region shapefile location.
func (s Sources) RegionsPath() string { return s.path(s.RegionsFile) }

func (s Sources) path(name string) string {
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// Load reads every input named by s. Any unreadable or CRS-less input fails
// the load with an error naming the file.
func Load(ctx context.Context, s Sources) (Inputs, error) {
	log := zap.L().With(zap.String("component", "loader"))

	paths, err := s.SSTPaths()
	if err != nil {
		return Inputs{}, err
	}
	bands := make([]*raster.Grid, 0, len(paths))
	labels := make([]string, 0, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return Inputs{}, eris.Wrap(err, "suitability: load")
		}
		g, err := readRaster(p, s.RasterCRS)
		if err != nil {
			return Inputs{}, err
		}
		bands = append(bands, g)
		labels = append(labels, strconv.Itoa(s.StartYear+i))
	}
	stack, err := raster.NewStack(bands, labels)
	if err != nil {
		return Inputs{}, eris.Wrap(err, "suitability: combine temperature years")
	}

	depth, err := readRaster(s.DepthPath(), s.RasterCRS)
	if err != nil {
		return Inputs{}, err
	}

	regions, err := region.LoadShapefile(s.RegionsPath(), region.LoadOptions{
		LabelField: s.LabelField,
		CRS:        s.RegionsCRS,
	})
	if err != nil {
		return Inputs{}, err
	}

	log.Info("suitability: inputs loaded",
		zap.Int("sst_years", stack.Len()),
		zap.Stringer("sst_crs", stack.CRS()),
		zap.Stringer("depth_crs", depth.CRS),
		zap.Stringer("regions_crs", regions.CRS),
		zap.Int("regions", len(regions.Regions)),
	)
	return Inputs{Temperature: stack, Depth: depth, Regions: regions}, nil
}

func readRaster(path string, override crs.CRS) (*raster.Grid, error) {
	g, err := raster.ReadGeoTIFF(path)
	if err != nil {
		return nil, err
	}
	if g.CRS.IsZero() {
		if override.IsZero() {
			return nil, eris.Wrapf(crs.ErrNoCRS, "suitability: %s", path)
		}
		g.CRS = override
	}
	return g, nil
}
