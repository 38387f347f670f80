package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpumc/family-mapper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "family-mapper",
	Short: "Geocode family address lists and serve them for map selection",
	Long:  "Ingests spreadsheets of family addresses, geocodes them against Nominatim with polite rate limiting, stores per-dataset results, and serves them to a map client for circle selection and CSV export.",
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
