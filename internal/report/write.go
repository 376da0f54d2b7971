package report

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/suitability"
)

// Output file names inside the output directory.
const (
	RasterFile   = "suitability.tif"
	XLSXFile     = "summary.xlsx"
	GeoJSONFile  = "suitable_cells.geojson"
	MapFile      = "map.html"
	MetricsFile  = "metrics.prom"
	ManifestFile = "manifest.yaml"
)

// Options selects what Write produces.
type Options struct {
	Dir    string
	NoMap  bool
	Map    MapOptions
	Inputs ManifestInputs

	// RunID ties the manifest and metrics of one run together; empty
	// generates a random UUID.
	RunID string
	// Clock stamps the manifest and metrics; nil uses the real clock.
	Clock clockwork.Clock
	// Started, when set, is when the run began and yields the duration metric.
	Started time.Time
}

// Write renders every output for res into opts.Dir and returns the paths
// written, manifest last.
func Write(res *suitability.Result, opts Options) ([]string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", opts.Dir)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	var written []string
	path := func(name string) string {
		p := filepath.Join(opts.Dir, name)
		written = append(written, p)
		return p
	}

	if err := raster.WriteGeoTIFF(path(RasterFile), res.Suitability, raster.WriteOptions{Deflate: true}); err != nil {
		return nil, err
	}
	if err := WriteXLSX(path(XLSXFile), res); err != nil {
		return nil, err
	}
	if err := writeFile(path(GeoJSONFile), func(w io.Writer) error { return WriteGeoJSON(w, res.Overlay) }); err != nil {
		return nil, err
	}
	if !opts.NoMap {
		if err := writeFile(path(MapFile), func(w io.Writer) error { return WriteMap(w, res, opts.Map) }); err != nil {
			return nil, err
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	now := clock.Now()

	metrics := NewRunMetrics()
	var elapsed time.Duration
	if !opts.Started.IsZero() {
		elapsed = clock.Since(opts.Started)
	}
	metrics.Observe(res, runID, elapsed, now)
	if err := metrics.WriteTextfile(path(MetricsFile)); err != nil {
		return nil, err
	}

	m := NewManifest(res, opts.Inputs, now)
	m.RunID = runID
	m.Outputs = make([]string, len(written))
	for i, p := range written {
		m.Outputs[i] = filepath.Base(p)
	}
	if err := writeFile(path(ManifestFile), func(w io.Writer) error { return WriteManifest(w, m) }); err != nil {
		return nil, err
	}

	zap.L().Info("report: outputs written", zap.String("run_id", runID), zap.String("dir", opts.Dir), zap.Strings("files", m.Outputs))
	return written, nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "report: close %s", path)
		}
	}()
	return fn(f)
}
