package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hpumc/family-mapper/internal/dataset"
	"github.com/hpumc/family-mapper/internal/job"
	"github.com/hpumc/family-mapper/pkg/geocode"
)

var geocodeDatasetName string

var geocodeCmd = &cobra.Command{
	Use:   "geocode <file.csv|file.xlsx>",
	Short: "Geocode an address file into a named dataset",
	Long:  "Runs the geocoding pipeline over a local file and stores the results as a dataset, with console progress. Ctrl-C cancels and discards the partial dataset.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		name := geocodeDatasetName
		if !dataset.ValidName(name) {
			return eris.Errorf("invalid dataset name %q", name)
		}

		store := dataset.NewStore(cfg.Store.Root)
		if store.Exists(name) {
			return eris.Errorf("dataset %q already exists", name)
		}

		// Copy the input so the job's temp-file cleanup never touches the
		// user's original.
		src, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open input file")
		}
		tmpPath, err := store.SaveTemp(src, filepath.Ext(args[0]))
		src.Close() //nolint:errcheck
		if err != nil {
			return err
		}

		registry := job.NewRegistry()
		base := geocode.NewClient(
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithTimeout(cfg.Geocode.Timeout()),
			geocode.WithMinDelay(cfg.Geocode.MinDelay()),
		)
		throttled := geocode.NewThrottled(base, geocode.BackoffConfig{
			TransientCooldown:      cfg.Geocode.TransientCooldown(),
			MaxConsecutiveFailures: cfg.Geocode.MaxConsecutiveFailures,
			FailureCooldown:        cfg.Geocode.FailureCooldown(),
		})
		runner := job.NewRunner(store, throttled, registry, cfg.Links.PersonBase)

		jobID := registry.NewJob()

		// Translate Ctrl-C into a cooperative cancel at the next row.
		go func() {
			<-ctx.Done()
			registry.RequestCancel(jobID)
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			runner.Run(ctx, jobID, name, tmpPath)
		}()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
	poll:
		for {
			select {
			case <-done:
				break poll
			case <-ticker.C:
				if p, ok := registry.Snapshot(jobID); ok && p.Status == job.StatusGeocoding {
					fmt.Printf("geocoding %d/%d: %s\n", p.Progress, p.Total, p.CurrentAddress)
				}
			}
		}

		p, _ := registry.Snapshot(jobID)
		switch p.Status {
		case job.StatusCompleted:
			fmt.Printf("completed: %d/%d geocoded, %d failed\n",
				p.SuccessfulCount, p.Total, p.FailedCount)
			return nil
		case job.StatusCanceled:
			fmt.Println("canceled: dataset discarded")
			return nil
		default:
			return eris.Errorf("geocoding failed: %s", p.Error)
		}
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeDatasetName, "name", "", "dataset name (required)")
	_ = geocodeCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(geocodeCmd)
}
