package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability-cli/internal/coordfile"
	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/places"
)

var (
	placesCoords     string
	placesRegion     string
	placesOut        string
	placesDetailsOut string
	placesNoCache    bool
)

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Collect nearby places and their reviews for each intersection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("places"); err != nil {
			return err
		}

		coords, err := coordfile.ReadFile(placesCoords)
		if err != nil {
			return err
		}

		var region *intersect.Region
		if placesRegion != "" {
			region, err = intersect.LoadRegion(placesRegion, extractOptions().Load)
			if err != nil {
				return err
			}
		}

		tally := cost.NewTally(newCalculator())
		fopts := []places.Option{places.WithTally(tally)}
		if !placesNoCache {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			fopts = append(fopts, places.WithCache(st))
		}

		fetcher := places.NewFetcher(newGoogleClient(), cfg.Places, fopts...)
		found, details, err := fetcher.Fetch(ctx, coords, region)
		if err != nil {
			return err
		}

		if err := places.WriteIDs(placesOut, found); err != nil {
			return err
		}
		if placesDetailsOut != "" {
			data, err := json.MarshalIndent(details, "", "  ")
			if err != nil {
				return eris.Wrap(err, "places: marshal details")
			}
			if err := os.WriteFile(placesDetailsOut, data, 0o644); err != nil {
				return eris.Wrapf(err, "places: write %s", placesDetailsOut)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d places (%d with reviews) written to %s, est. cost $%.4f\n", //nolint:errcheck
			len(found), len(details), placesOut, tally.Total())
		return nil
	},
}

func init() {
	f := placesCmd.Flags()
	f.StringVar(&placesCoords, "coords", "intersections.txt", "coordinates file written by extract")
	f.StringVar(&placesRegion, "region", "", "neighborhood polygon; places outside it are dropped")
	f.StringVar(&placesOut, "out", "places.txt", "output place ID file")
	f.StringVar(&placesDetailsOut, "details-out", "place_details.json", "output place details JSON (empty to skip)")
	f.BoolVar(&placesNoCache, "no-cache", false, "skip the place details cache")
	rootCmd.AddCommand(placesCmd)
}
