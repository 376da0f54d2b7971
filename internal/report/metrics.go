package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/aquasite/internal/suitability"
)

const namespace = "aquasite"

// RunMetrics are the gauges describing one evaluation, kept on a private
// registry so a node_exporter textfile collector can pick them up.
type RunMetrics struct {
	Registry *prometheus.Registry

	RunInfo *prometheus.GaugeVec // labels: run_id

	SuitableCells *prometheus.GaugeVec // labels: region
	SuitableArea  *prometheus.GaugeVec // labels: region
	NoDataCells   *prometheus.GaugeVec // labels: region
	CellArea      prometheus.Gauge
	Duration      prometheus.Gauge
	LastRun       prometheus.Gauge
}

// NewRunMetrics creates the gauges on a fresh registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		Registry: prometheus.NewRegistry(),
		RunInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Always 1; the run_id label matches the manifest.",
		}, []string{"run_id"}),
		SuitableCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suitable_cells",
			Help:      "Suitable cells per region in the last run.",
		}, []string{"region"}),
		SuitableArea: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suitable_area_square_meters",
			Help:      "Suitable area per region in the last run.",
		}, []string{"region"}),
		NoDataCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "no_data_cells",
			Help:      "In-region cells with missing temperature or depth.",
		}, []string{"region"}),
		CellArea: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_area_square_meters",
			Help:      "Area of one grid cell in the area CRS.",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from loading inputs to writing reports.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.Registry.MustRegister(m.RunInfo, m.SuitableCells, m.SuitableArea, m.NoDataCells, m.CellArea, m.Duration, m.LastRun)
	return m
}

// Observe records res under runID. A zero duration leaves the duration gauge
// unset and an empty runID leaves run_info unset.
func (m *RunMetrics) Observe(res *suitability.Result, runID string, duration time.Duration, now time.Time) {
	if runID != "" {
		m.RunInfo.WithLabelValues(runID).Set(1)
	}
	for _, row := range res.Summary {
		m.SuitableCells.WithLabelValues(row.Label).Set(float64(row.SuitableCells))
		m.SuitableArea.WithLabelValues(row.Label).Set(row.AreaM2)
		m.NoDataCells.WithLabelValues(row.Label).Set(float64(row.NoDataCells))
	}
	m.CellArea.Set(res.CellAreaM2)
	if duration > 0 {
		m.Duration.Set(duration.Seconds())
	}
	m.LastRun.Set(float64(now.Unix()))
}

// WriteTextfile writes the metrics in the Prometheus text exposition format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return eris.Wrapf(err, "report: write metrics %s", path)
	}
	return nil
}
