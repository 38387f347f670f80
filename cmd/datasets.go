package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hpumc/family-mapper/internal/dataset"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage stored datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.NewStore(cfg.Store.Root)
		infos, err := store.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no datasets")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%-30s %s  %d addresses\n",
				info.Name,
				info.LastModified.Format("2006-01-02 15:04"),
				info.AddressCount,
			)
		}
		return nil
	},
}

var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete one dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.NewStore(cfg.Store.Root)
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted dataset %q\n", args[0])
		return nil
	},
}

var datasetsClearForce bool

var datasetsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete ALL datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !datasetsClearForce {
			return eris.New("refusing to delete all datasets without --force")
		}
		store := dataset.NewStore(cfg.Store.Root)
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("all datasets cleared")
		return nil
	},
}

func init() {
	datasetsClearCmd.Flags().BoolVar(&datasetsClearForce, "force", false, "confirm deletion of all datasets")
	datasetsCmd.AddCommand(datasetsListCmd, datasetsDeleteCmd, datasetsClearCmd)
	rootCmd.AddCommand(datasetsCmd)
}
