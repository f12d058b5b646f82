package main

import (
	"github.com/spf13/cobra"

	"docverse/internal/manifest"
)

// LoadResponseCLI lists the packages a manifest loaded.
type LoadResponseCLI struct {
	Manifest string            `json:"manifest"`
	Packages []manifest.Result `json:"packages"`
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load every package in the manifest",
	Long: `Reads the manifest and ingests every package in dependency order,
reporting the version each package was committed at. Invalid graphs and
package dependency cycles are reported without committing anything for the
offending package.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	return printResponse(&LoadResponseCLI{Manifest: w.manifest.Name, Packages: w.loaded})
}
