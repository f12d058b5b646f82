package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"docverse/internal/atom"
	"docverse/internal/errors"
	"docverse/internal/graph"
	"docverse/internal/tree"
	"docverse/internal/universe"
)

// Result is the outcome of ingesting one package.
type Result struct {
	Package string       `json:"package"`
	ID      atom.Package `json:"id"`
	Version tree.Version `json:"version"`
	Graphs  int          `json:"graphs"`
}

// ReadAll decodes the graphs of every package, reading up to parallelism
// packages at once. The first failure cancels the rest.
func (m *Manifest) ReadAll(ctx context.Context, parallelism int) (map[string][]*graph.Graph, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([][]*graph.Graph, len(m.Packages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range m.Packages {
		p := &m.Packages[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dir := m.PackageDir(p)
			d, err := LoadDeclaration(dir)
			if err != nil {
				return fmt.Errorf("package %q: %w", p.Name, err)
			}
			graphs, err := d.Read(dir)
			if err != nil {
				return fmt.Errorf("package %q: %w", p.Name, err)
			}
			results[i] = graphs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]*graph.Graph, len(m.Packages))
	for i, p := range m.Packages {
		out[p.Name] = results[i]
	}
	return out, nil
}

// Ingest reads every package and updates u in dependency order, resolving
// each package's pin selectors after the packages it pins were ingested.
func Ingest(ctx context.Context, u *universe.Universe, m *Manifest, parallelism int, logger *slog.Logger) ([]Result, error) {
	ordered, err := m.Order()
	if err != nil {
		return nil, err
	}
	graphs, err := m.ReadAll(ctx, parallelism)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ordered))
	for _, p := range ordered {
		pins, err := resolvePins(u, p)
		if err != nil {
			return results, err
		}
		id := u.Register(p.Name)
		at, err := u.UpdatePackage(ctx, id, p.Branch, graphs[p.Name], pins)
		if err != nil {
			return results, fmt.Errorf("package %q: %w", p.Name, err)
		}
		results = append(results, Result{Package: p.Name, ID: id, Version: at, Graphs: len(graphs[p.Name])})
		if logger != nil {
			logger.Debug("Loaded package", "package", p.Name, "uid", p.UID, "version", at.String())
		}
	}
	return results, nil
}

func resolvePins(u *universe.Universe, p *PackageConfig) (map[atom.Package]tree.Version, error) {
	pins := make(map[atom.Package]tree.Version, len(p.Pins))
	for _, dep := range slices.Sorted(maps.Keys(p.Pins)) {
		id, ok := u.Lookup(dep)
		if !ok {
			return nil, errors.Errorf(errors.UnknownPackage, "package %q pins unknown package %q", p.Name, dep).
				WithHint(errors.GetHint(errors.UnknownPackage))
		}
		sel, err := tree.ParseSelector(p.Pins[dep])
		if err != nil {
			return nil, err
		}
		at, err := u.Pin(id, sel)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", p.Name, err)
		}
		pins[id] = at
	}
	return pins, nil
}
