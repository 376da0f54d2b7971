package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/report"
	"github.com/sells-group/aquasite/internal/suitability"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compute suitable area per region",
	Long: `Loads the SST years, bathymetry and region boundaries, classifies every cell
against the temperature and depth ranges, and writes the suitability grid, a
per-region summary, a GeoJSON overlay, an HTML map and a run manifest.

Flags override the criteria and years from config.yaml / AQUASITE_* env vars.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyEvaluateFlags(cmd)
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}

		runID := uuid.NewString()
		log := zap.L().With(zap.String("command", "evaluate"), zap.String("run_id", runID))
		clock := clockwork.NewRealClock()
		started := clock.Now()

		src, err := cfg.Sources()
		if err != nil {
			return err
		}
		areaCRS, err := cfg.AreaCRS()
		if err != nil {
			return err
		}
		criteria := cfg.SuitabilityCriteria()

		log.Info("starting evaluation",
			zap.String("data_dir", src.Dir),
			zap.Int("start_year", src.StartYear),
			zap.Int("end_year", src.EndYear),
			zap.Float64("temp_low", criteria.Temperature.Low),
			zap.Float64("temp_high", criteria.Temperature.High),
			zap.Float64("depth_low", criteria.Depth.Low),
			zap.Float64("depth_high", criteria.Depth.High),
		)

		in, err := suitability.Load(ctx, src)
		if err != nil {
			return eris.Wrap(err, "evaluate: load inputs")
		}
		res, err := suitability.NewEvaluator(areaCRS).Evaluate(ctx, in, criteria)
		if err != nil {
			return eris.Wrap(err, "evaluate")
		}

		sstPaths, err := src.SSTPaths()
		if err != nil {
			return err
		}
		paths, err := report.Write(res, report.Options{
			Dir:     cfg.Output.Dir,
			NoMap:   cfg.Output.NoMap,
			Map:     report.MapOptions{Title: cfg.Output.Title},
			Clock:   clock,
			Started: started,
			RunID:   runID,
			Inputs: report.ManifestInputs{
				SST:       sstPaths,
				StartYear: src.StartYear,
				EndYear:   src.EndYear,
				Depth:     src.DepthPath(),
				Regions:   src.RegionsPath(),
			},
		})
		if err != nil {
			return eris.Wrap(err, "evaluate: write reports")
		}

		out := cmd.OutOrStdout()
		if err := report.WriteTable(out, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nwrote %d files to %s\n", len(paths), cfg.Output.Dir)
		return nil
	},
}

// applyEvaluateFlags copies explicitly set flags over the loaded config.
func applyEvaluateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	floats := map[string]*float64{
		"temp-low":   &cfg.Criteria.TempLow,
		"temp-high":  &cfg.Criteria.TempHigh,
		"depth-low":  &cfg.Criteria.DepthLow,
		"depth-high": &cfg.Criteria.DepthHigh,
	}
	for name, dst := range floats {
		if f.Changed(name) {
			*dst, _ = f.GetFloat64(name)
		}
	}
	if f.Changed("start-year") {
		cfg.Years.Start, _ = f.GetInt("start-year")
	}
	if f.Changed("end-year") {
		cfg.Years.End, _ = f.GetInt("end-year")
	}
	if f.Changed("out") {
		cfg.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("no-map") {
		cfg.Output.NoMap, _ = f.GetBool("no-map")
	}
}

func init() {
	evaluateCmd.Flags().Float64("temp-low", 14.8, "lowest unsuitable mean SST in °C (suitable is above)")
	evaluateCmd.Flags().Float64("temp-high", 22.3, "highest suitable mean SST in °C")
	evaluateCmd.Flags().Float64("depth-low", -150, "lowest unsuitable elevation in m (suitable is above)")
	evaluateCmd.Flags().Float64("depth-high", 0, "highest suitable elevation in m")
	evaluateCmd.Flags().Int("start-year", 0, "first SST year (default: from config or 2008)")
	evaluateCmd.Flags().Int("end-year", 0, "last SST year (default: from config or 2012)")
	evaluateCmd.Flags().String("out", "", "output directory (default: from config or out)")
	evaluateCmd.Flags().Bool("no-map", false, "skip the HTML map")
	rootCmd.AddCommand(evaluateCmd)
}
