package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/suitability"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the inputs load and align without classifying them",
	Long: `Loads every input, reprojects to the region CRS, averages the SST years and
resamples depth onto that grid, then reports whether the two grids line up.
Exits non-zero when they do not.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f := cmd.Flags()
		if f.Changed("start-year") {
			cfg.Years.Start, _ = f.GetInt("start-year")
		}
		if f.Changed("end-year") {
			cfg.Years.End, _ = f.GetInt("end-year")
		}
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		src, err := cfg.Sources()
		if err != nil {
			return err
		}
		in, err := suitability.Load(ctx, src)
		if err != nil {
			return eris.Wrap(err, "check: load inputs")
		}
		p, err := suitability.NewEvaluator(crs.CRS{}).Prepare(ctx, in)
		if err != nil {
			return eris.Wrap(err, "check")
		}

		zap.L().Info("alignment checked",
			zap.String("command", "check"),
			zap.Bool("aligned", p.Alignment.OK),
			zap.String("reason", p.Alignment.Reason),
		)

		out := cmd.OutOrStdout()
		g := p.MeanTemperature
		fmt.Fprintf(out, "reference crs  %s\n", crsLabel(g.CRS))
		fmt.Fprintf(out, "grid           %d x %d at %g x %g\n", g.Cols, g.Rows, g.ResX, g.ResY)
		fmt.Fprintf(out, "extent         %s\n", g.Extent())
		fmt.Fprintf(out, "sst years      %d\n", in.Temperature.Len())
		fmt.Fprintf(out, "regions        %d\n", len(in.Regions.Regions))
		fmt.Fprintf(out, "depth vs sst   %s\n", p.Alignment)
		if !p.Alignment.OK {
			return eris.Wrap(suitability.ErrMisaligned, p.Alignment.Reason)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Int("start-year", 0, "first SST year (default: from config or 2008)")
	checkCmd.Flags().Int("end-year", 0, "last SST year (default: from config or 2012)")
	rootCmd.AddCommand(checkCmd)
}
