package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/internal/scorer"
)

var (
	scoreDetails string
	scoreOut     string
	scoreImages  string
	scoreReport  string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score places or street imagery with Claude",
}

var scoreSentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Rate each place 0-100 from its reviews and summarize the scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		details, err := readPlaceDetails(scoreDetails)
		if err != nil {
			return err
		}

		tally := cost.NewTally(newCalculator())
		scores, err := scorer.New(newAnthropicClient(), cfg.Scorer, tally).Sentiment(cmd.Context(), details)
		if err != nil {
			return err
		}
		if err := scorer.WriteSentimentResults(scoreOut, scores); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d of %d places scored, written to %s\n", len(scores), len(details), scoreOut) //nolint:errcheck
		if len(scores) > 0 {
			summary, err := scorer.FiveNumber(scorer.Values(scores))
			if err != nil {
				return err
			}
			printSummary(out, summary)
		}
		fmt.Fprintf(out, "est. cost $%.4f\n", tally.Total()) //nolint:errcheck
		return nil
	},
}

var scoreWalkabilityCmd = &cobra.Command{
	Use:   "walkability",
	Short: "Rate the walkability of an area from its Street View images",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		images, err := scorer.ListImages(scoreImages)
		if err != nil {
			return err
		}

		tally := cost.NewTally(newCalculator())
		report, err := scorer.New(newAnthropicClient(), cfg.Scorer, tally).Walkability(cmd.Context(), images)
		if err != nil {
			return err
		}
		if err := scorer.WriteReport(scoreReport, report); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Walkability score: %d\n", report.Score) //nolint:errcheck
		for _, e := range report.Explanations {
			fmt.Fprintf(out, "  - %s\n", e) //nolint:errcheck
		}
		fmt.Fprintf(out, "report written to %s, est. cost $%.4f\n", scoreReport, tally.Total()) //nolint:errcheck
		return nil
	},
}

func readPlaceDetails(path string) ([]model.PlaceDetails, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "score: read %s", path)
	}
	var details []model.PlaceDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, eris.Wrapf(err, "score: parse %s", path)
	}
	return details, nil
}

func printSummary(w io.Writer, s *model.FiveNumberSummary) {
	fmt.Fprintf(w, "Five-number summary of %d scores:\n", s.Count) //nolint:errcheck
	fmt.Fprintf(w, "  min     %6.2f\n", s.Min)                     //nolint:errcheck
	fmt.Fprintf(w, "  q1      %6.2f\n", s.Q1)                      //nolint:errcheck
	fmt.Fprintf(w, "  median  %6.2f\n", s.Median)                  //nolint:errcheck
	fmt.Fprintf(w, "  q3      %6.2f\n", s.Q3)                      //nolint:errcheck
	fmt.Fprintf(w, "  max     %6.2f\n", s.Max)                     //nolint:errcheck
}

func init() {
	sf := scoreSentimentCmd.Flags()
	sf.StringVar(&scoreDetails, "details", "place_details.json", "place details JSON written by places")
	sf.StringVar(&scoreOut, "out", "sentiment_analysis_results.txt", "output results file")

	wf := scoreWalkabilityCmd.Flags()
	wf.StringVar(&scoreImages, "images", "streetview_images", "directory of Street View images")
	wf.StringVar(&scoreReport, "out", "report.json", "output report (.json or .yaml)")

	scoreCmd.AddCommand(scoreSentimentCmd, scoreWalkabilityCmd)
	rootCmd.AddCommand(scoreCmd)
}
