package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docverse/internal/atom"
	"docverse/internal/config"
	"docverse/internal/errors"
	"docverse/internal/manifest"
	"docverse/internal/pinned"
	"docverse/internal/slogutil"
	"docverse/internal/tree"
	"docverse/internal/universe"
)

// workspace is a manifest loaded into a fresh universe. The store keeps no
// state on disk, so every command starts by building one.
type workspace struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	manifest *manifest.Manifest
	universe *universe.Universe
	loaded   []manifest.Result
}

func workspaceRoot() (string, error) {
	if rootFlag != "" {
		return filepath.Abs(rootFlag)
	}
	return os.Getwd()
}

func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromVerbosity(verboseFlag, quietFlag, slogutil.LevelFromString(cfg.Logging.Level))
	return slogutil.NewLogger(os.Stderr, cfg.Logging.Format, level)
}

func (w *workspace) manifestPath() string {
	path := manifestFlag
	if path == "" {
		path = w.cfg.Manifest
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	return path
}

// openWorkspace loads the configuration and manifest under the workspace
// root and ingests every package.
func openWorkspace(ctx context.Context) (*workspace, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	w := &workspace{root: root, cfg: cfg, logger: newLogger(cfg)}

	m, err := manifest.Load(w.manifestPath())
	if err != nil {
		return nil, err
	}
	w.manifest = m
	w.universe = universe.New(universe.Options{
		DefaultBranch: cfg.DefaultBranch,
		SkipUnchanged: cfg.Ingest.SkipUnchanged,
		Logger:        w.logger,
	})

	w.loaded, err = manifest.Ingest(ctx, w.universe, m, cfg.Ingest.Parallelism, w.logger)
	if err != nil {
		return nil, err
	}
	w.logger.Info("Loaded manifest", "name", m.Name, "packages", len(w.loaded))
	return w, nil
}

// pin resolves a package name and an optional selector. An empty selector
// picks the head of the package's default branch.
func (w *workspace) pin(name, at string) (atom.Package, tree.Version, error) {
	id, ok := w.universe.Lookup(name)
	if !ok {
		return 0, tree.Version{}, errors.Errorf(errors.UnknownPackage, "unknown package %q", name)
	}
	if at == "" {
		v, _ := w.universe.Volume(id)
		head, ok := v.Default()
		if !ok {
			return 0, tree.Version{}, errors.Errorf(errors.InvalidPin, "package %q has no revisions", name)
		}
		return id, head, nil
	}
	sel, err := tree.ParseSelector(at)
	if err != nil {
		return 0, tree.Version{}, err
	}
	v, err := w.universe.Pin(id, sel)
	if err != nil {
		return 0, tree.Version{}, err
	}
	return id, v, nil
}

// context pins name at the given selector and builds its query context.
// A bidirectional context reaches the consumers the config whitelists.
func (w *workspace) context(name, at string, bidirectional bool) (*pinned.Context, error) {
	id, v, err := w.pin(name, at)
	if err != nil {
		return nil, err
	}
	if !bidirectional {
		return w.universe.Context(id, v)
	}
	var whitelist []atom.Package
	if len(w.cfg.Resolution.Consumers) > 0 {
		whitelist = []atom.Package{}
		for _, consumer := range w.cfg.Resolution.Consumers {
			if cid, ok := w.universe.Lookup(consumer); ok {
				whitelist = append(whitelist, cid)
			} else {
				w.logger.Warn("Ignoring unknown consumer", "package", consumer)
			}
		}
	}
	return w.universe.Bidirectional(id, v, whitelist)
}

// linkage is every module visible from the context.
func linkage(c *pinned.Context) atom.Linkage {
	linked := atom.Link()
	add := func(p *pinned.Package) {
		for m := range p.Modules() {
			linked.Add(m.Atom)
		}
	}
	add(c.Local())
	for _, p := range c.Upstream() {
		add(p)
	}
	for _, p := range c.Downstream() {
		add(p)
	}
	return linked
}

// find looks up a stable identifier across the whole context.
func find(c *pinned.Context, id string) (atom.Symbol, error) {
	s, _, ok := c.Find(id, linkage(c))
	if !ok {
		return atom.Symbol{}, fmt.Errorf("symbol %q not found in %s", id, c.Local().Name())
	}
	return s, nil
}
