package main

import (
	"github.com/spf13/cobra"

	"docverse/internal/version"
)

var (
	rootFlag     string
	manifestFlag string
	verboseFlag  int
	quietFlag    bool
	formatFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "docverse",
	Short: "Versioned symbol graph store",
	Long: `docverse loads the symbol graphs of documented packages into a
versioned store and answers questions about them.

Every package is pinned against exact versions of the packages it depends
on, so symbols, documentation and addresses resolve across packages as they
were when the package was ingested.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlag, "root", "", "Workspace root (default: current directory)")
	flags.StringVar(&manifestFlag, "manifest", "", "Manifest path (default: from config)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output")
	flags.StringVar(&formatFlag, "format", string(FormatHuman), "Output format (json, human)")
}
