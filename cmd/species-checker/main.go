// cmd/species-checker/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "species-checker",
		Short: "Reconcile species names against a taxonomic reconciliation service",
		Long: `species-checker matches pasted species names against a reconciliation
endpoint and enriches every match with taxonomic attributes.

It runs as a web service, as a one-shot command over a file, or as a Zeebe
job worker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default: configs/config.yaml)")

	root.AddCommand(
		newServeCommand(&configPath),
		newCheckCommand(&configPath),
		newWorkerCommand(&configPath),
	)
	return root
}
