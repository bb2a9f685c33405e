package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "walkability",
	Short: "Urban walkability analysis from street intersections",
	Long:  "Finds street intersections inside a neighborhood polygon, gathers nearby place reviews or Street View imagery for them, and scores sentiment and walkability with Claude.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
