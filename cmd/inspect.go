package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/region"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print metadata of a GeoTIFF or region shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		zap.L().Debug("inspecting", zap.String("command", "inspect"), zap.String("path", path))

		if strings.EqualFold(filepath.Ext(path), ".shp") {
			return inspectShapefile(cmd.OutOrStdout(), path)
		}
		g, err := raster.ReadGeoTIFF(path)
		if err != nil {
			return err
		}
		return printGrid(cmd.OutOrStdout(), path, g)
	},
}

func printGrid(w io.Writer, path string, g *raster.Grid) error {
	st := g.Stats()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", path)
	fmt.Fprintf(tw, "size\t%d x %d\n", g.Cols, g.Rows)
	fmt.Fprintf(tw, "crs\t%s\n", crsLabel(g.CRS))
	fmt.Fprintf(tw, "extent\t%s\n", g.Extent())
	fmt.Fprintf(tw, "resolution\t%g x %g\n", g.ResX, g.ResY)
	fmt.Fprintf(tw, "valid cells\t%d of %d\n", st.Valid, st.Cells)
	if st.Valid > 0 {
		fmt.Fprintf(tw, "min / max\t%g / %g\n", st.Min, st.Max)
		fmt.Fprintf(tw, "mean\t%g\n", st.Mean)
	}
	return eris.Wrap(tw.Flush(), "inspect: write")
}

// inspectShapefile honors data.label_field and data.regions_crs so the output
// matches what evaluate would load.
func inspectShapefile(w io.Writer, path string) error {
	src, err := cfg.Sources()
	if err != nil {
		return err
	}
	set, err := region.LoadShapefile(path, region.LoadOptions{LabelField: cfg.Data.LabelField, CRS: src.RegionsCRS})
	if err != nil {
		return err
	}
	ext, err := set.Extent()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", path)
	fmt.Fprintf(tw, "crs\t%s\n", crsLabel(set.CRS))
	fmt.Fprintf(tw, "extent\t%s\n", ext)
	fmt.Fprintf(tw, "regions\t%d\n", len(set.Regions))
	for _, r := range set.Regions {
		fmt.Fprintf(tw, "  %s\t%d polygons\n", r.Label, r.Geom.NumPolygons())
	}
	return eris.Wrap(tw.Flush(), "inspect: write")
}

func crsLabel(c crs.CRS) string {
	if c.IsZero() {
		return "none"
	}
	return c.String()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
