package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/walkability-cli/internal/model"
)

var (
	runRoads  string
	runRegion string
	runMode   string
	runName   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis for one study area",
	Long: `Extracts intersections, then either scores nearby places by review
sentiment (--mode sentiment) or scores Street View imagery for walkability
(--mode streetview). --mode extract stops after extraction. Progress and
results are recorded in the run store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mode := model.RunMode(strings.ToLower(runMode))

		env, err := initPipeline(ctx, validationMode(mode))
		if err != nil {
			return err
		}
		defer env.Close()

		name := runName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(runRegion), filepath.Ext(runRegion))
		}
		area := model.StudyArea{Name: name, RoadsPath: runRoads, RegionPath: runRegion}

		run, err := env.Pipeline.Run(ctx, area, mode)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s: %s\n", run.ID, run.Status) //nolint:errcheck
		if r := run.Result; r != nil {
			fmt.Fprintf(out, "Intersections: %d\n", r.Intersections) //nolint:errcheck
			if r.Summary != nil {
				printSummary(out, r.Summary)
			}
			if r.Walkability != nil {
				fmt.Fprintf(out, "Walkability score: %d\n", r.Walkability.Score) //nolint:errcheck
			}
			fmt.Fprintf(out, "Tokens: %d  Cost: $%.4f\n", r.TotalTokens, r.TotalCost) //nolint:errcheck
			if r.OutputDir != "" {
				fmt.Fprintf(out, "Output: %s\n", r.OutputDir) //nolint:errcheck
			}
			if r.Error != "" {
				return fmt.Errorf("run %s failed (%s): %s", truncateID(run.ID), r.ErrorKind, r.Error)
			}
		}
		return nil
	},
}

// validationMode maps a run mode to the config checks its phases need.
func validationMode(mode model.RunMode) string {
	if mode == model.RunModeStreetView {
		return "walkability"
	}
	return string(mode)
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runRoads, "roads", "", "road network file")
	f.StringVar(&runRegion, "region", "", "neighborhood polygon file")
	f.StringVar(&runMode, "mode", string(model.RunModeSentiment), "sentiment, streetview or extract")
	f.StringVar(&runName, "name", "", "study area name (default region file name)")
	_ = runCmd.MarkFlagRequired("roads")
	_ = runCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(runCmd)
}
