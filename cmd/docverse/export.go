package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docverse/internal/export"
	"docverse/internal/pinned"
)

var (
	exportAt           string
	exportOut          string
	exportDisambiguate string
)

var exportCmd = &cobra.Command{
	Use:   "export <package>",
	Short: "Export a pinned package to SQLite",
	Long: `Writes the modules, symbols, overlays and articles of a package at one
version to a SQLite database, with documentation inherited across packages
and addresses resolved against the packages it pins. An existing file at
the output path is replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportAt, "at", "", "Version selector: <branch>, <branch>:<revision> or <branch>:<YYYY-MM-DD>")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output path (default: export.path from config)")
	exportCmd.Flags().StringVar(&exportDisambiguate, "disambiguate", "", "Hash suffix: never, minimally or always (default: from config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	c, err := w.context(args[0], exportAt, false)
	if err != nil {
		return err
	}

	opts := export.Options{Path: exportOut, Disambiguation: w.cfg.Disambiguation()}
	if opts.Path == "" {
		opts.Path = w.cfg.Export.Path
	}
	if !filepath.IsAbs(opts.Path) {
		opts.Path = filepath.Join(w.root, opts.Path)
	}
	if exportDisambiguate != "" {
		if opts.Disambiguation, err = pinned.ParseDisambiguation(exportDisambiguate); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return err
	}

	summary, err := export.NewExporter(c, w.logger).Export(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return printResponse(summary)
}
