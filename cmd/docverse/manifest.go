package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docverse/internal/config"
	"docverse/internal/manifest"
)

var (
	initName string
	addPins  map[string]string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration and an empty manifest",
	Long: `Writes .docverse/config.json with the default settings and an empty
manifest next to it. Existing files are left alone.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var addCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Add a package to the manifest",
	Long: `Adds a package whose graphs live under path, relative to the manifest.
Pins name the packages it depends on and the version of each to resolve
against.

Examples:
  docverse add swift-collections packages/collections --pin swift=main
  docverse add swift-nio packages/nio --pin swift=main:2025-06-01 --pin swift-collections=main:3`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Manifest name (default: directory name)")
	addCmd.Flags().StringToStringVar(&addPins, "pin", nil, "Pin a dependency: <package>=<selector>")
	rootCmd.AddCommand(initCmd, addCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(root, config.Dir, "config.json")); os.IsNotExist(err) {
		if err := cfg.Save(root); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	w := &workspace{root: root, cfg: cfg}
	path := w.manifestPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Manifest already exists at %s\n", path)
		return nil
	}
	name := initName
	if name == "" {
		name = filepath.Base(root)
	}
	if err := manifest.New(name, filepath.Dir(path)).Save(path); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	w := &workspace{root: root, cfg: cfg}
	path := w.manifestPath()

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	p, err := m.AddPackage(args[0], args[1], addPins)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if _, err := m.Order(); err != nil {
		return err
	}
	if err := m.Save(path); err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", p.Name, p.UID)
	return nil
}
