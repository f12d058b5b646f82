package main

import (
	"github.com/spf13/cobra"

	"docverse/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
