package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/coordfile"
	"github.com/sells-group/walkability-cli/internal/intersect"
)

var (
	extractRoads           string
	extractRegion          string
	extractOut             string
	extractIncludeBoundary bool
	extractDefaultCRS      string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Find road intersections inside a neighborhood polygon",
	Long: `Reads a road network and a neighborhood polygon (shapefile, zipped
shapefile, GeoJSON or WKT), reprojects both to EPSG:4326 and writes one
"lat, lon" line per intersection strictly inside the polygon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		opts := extractOptions()
		if cmd.Flags().Changed("include-boundary") {
			opts.IncludeBoundary = extractIncludeBoundary
		}
		if extractDefaultCRS != "" {
			opts.Load.DefaultCRS = extractDefaultCRS
		}

		res, err := intersect.ExtractFiles(cmd.Context(), extractRoads, extractRegion, opts)
		if err != nil {
			return eris.Wrapf(err, "extract (%s)", intersect.KindOf(err))
		}

		if err := coordfile.WriteFile(extractOut, res.Points); err != nil {
			return err
		}

		zap.L().Info("extract: complete",
			zap.Int("roads", res.Roads),
			zap.Int("pairs", res.Pairs),
			zap.Int("intersections", len(res.Points)),
			zap.String("out", extractOut),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%d intersections written to %s\n", len(res.Points), extractOut) //nolint:errcheck
		return nil
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractRoads, "roads", "", "road network file (.shp, .zip, .geojson, .wkt)")
	f.StringVar(&extractRegion, "region", "", "neighborhood polygon file")
	f.StringVar(&extractOut, "out", "intersections.txt", "output coordinates file")
	f.BoolVar(&extractIncludeBoundary, "include-boundary", false, "keep intersections on the polygon boundary")
	f.StringVar(&extractDefaultCRS, "default-crs", "", "CRS for inputs without one, e.g. EPSG:26917")
	_ = extractCmd.MarkFlagRequired("roads")
	_ = extractCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(extractCmd)
}
