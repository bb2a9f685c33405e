package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/walkability-cli/internal/coordfile"
	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/streetview"
)

var (
	streetViewCoords string
	streetViewOut    string
)

var streetViewCmd = &cobra.Command{
	Use:   "streetview",
	Short: "Download Street View images at every heading for each intersection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("streetview"); err != nil {
			return err
		}

		coords, err := coordfile.ReadFile(streetViewCoords)
		if err != nil {
			return err
		}

		opts := cfg.StreetView
		if streetViewOut != "" {
			opts.OutputDir = streetViewOut
		}
		tally := cost.NewTally(newCalculator())
		saved, err := streetview.NewFetcher(newGoogleClient(), opts, tally).Fetch(cmd.Context(), coords)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d images saved to %s, est. cost $%.4f\n", len(saved), opts.OutputDir, tally.Total()) //nolint:errcheck
		return nil
	},
}

func init() {
	f := streetViewCmd.Flags()
	f.StringVar(&streetViewCoords, "coords", "intersections.txt", "coordinates file written by extract")
	f.StringVar(&streetViewOut, "out", "", "image directory (default streetview.output_dir)")
	rootCmd.AddCommand(streetViewCmd)
}
