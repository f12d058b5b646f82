// Package pinned answers queries against packages pinned to fixed versions.
//
// A Package is one volume viewed as of one version. A Context binds a local
// package to the pinned packages it depends on (and, for a bidirectional
// context, the pinned packages that depend on it) and resolves symbol lookups,
// addresses and inherited documentation across all of them.
//
// Pinned values are immutable once built. Reads take the underlying volume's
// read lock per lookup, so a context may be shared between goroutines and used
// while its packages are being ingested.
package pinned

import (
	"iter"
	"strings"
	"sync"

	"docverse/internal/atom"
	"docverse/internal/entity"
	"docverse/internal/tree"
	"docverse/internal/volume"
)

// Package is a volume pinned to one version.
type Package struct {
	volume  *volume.Volume
	version tree.Version
	lineage tree.Lineage
	info    tree.RevisionInfo

	once  sync.Once
	paths map[string][]atom.Symbol
}

// NewPackage pins v to version at. It reports false if at is not a
// committed version of v.
func NewPackage(v *volume.Volume, at tree.Version) (*Package, bool) {
	lineage, info, ok := v.Pin(at)
	if !ok {
		return nil, false
	}
	return &Package{volume: v, version: at, lineage: lineage, info: info}, true
}

// ID returns the package id.
func (p *Package) ID() atom.Package { return p.volume.ID() }

// Name returns the package name.
func (p *Package) Name() string { return p.volume.Name() }

// Version returns the pinned version.
func (p *Package) Version() tree.Version { return p.version }

// Lineage returns the lineage of the pinned version.
func (p *Package) Lineage() tree.Lineage { return p.lineage }

// Volume returns the underlying store.
func (p *Package) Volume() *volume.Volume { return p.volume }

// Info returns the revision record captured when the package was pinned. It
// reports false once the pinned revision has been rolled back, after which
// reads through p no longer reflect the pinned content.
func (p *Package) Info() (tree.RevisionInfo, bool) {
	return p.info, p.Current()
}

// Current reports whether the pinned revision is still the one recorded when
// p was built.
func (p *Package) Current() bool {
	rec, ok := p.volume.Record(p.version)
	return ok && rec.Ingestion == p.info.Ingestion && rec.Digest == p.info.Digest && rec.Date.Equal(p.info.Date)
}

// Find returns the live symbol with stable identifier id.
func (p *Package) Find(id string) (atom.Symbol, *entity.Intrinsic, bool) {
	s, ok := p.volume.FindSymbol(id)
	if !ok {
		return atom.Symbol{}, nil, false
	}
	in := p.volume.Intrinsic(s, p.lineage)
	if in == nil {
		return atom.Symbol{}, nil, false
	}
	return s, in, true
}

// Symbol returns s as of the pinned version.
func (p *Package) Symbol(s atom.Symbol) (volume.SymbolView, bool) {
	return p.volume.Symbol(s, p.lineage)
}

// Module returns m as of the pinned version.
func (p *Package) Module(m atom.Module) (volume.ModuleView, bool) {
	return p.volume.Module(m, p.lineage)
}

// Symbols yields every live symbol.
func (p *Package) Symbols() iter.Seq[volume.SymbolView] {
	return p.volume.Symbols(p.lineage)
}

// Modules yields every live module.
func (p *Package) Modules() iter.Seq[volume.ModuleView] {
	return p.volume.Modules(p.lineage)
}

// Articles yields every live article.
func (p *Package) Articles() iter.Seq[volume.ArticleView] {
	return p.volume.Articles(p.lineage)
}

// Overlays returns what this package's cultures contribute to host.
func (p *Package) Overlays(host atom.Symbol) []volume.OverlayView {
	return p.volume.Overlays(host, p.lineage)
}

// Imports reports whether a live module of p imports one of modules.
func (p *Package) Imports(modules atom.Linkage) bool {
	for m := range p.Modules() {
		for _, dep := range m.Dependencies {
			if modules.Contains(dep) {
				return true
			}
		}
	}
	return false
}

// Named returns the live symbols whose module and path match, compared
// case-insensitively.
func (p *Package) Named(module string, path []string) []atom.Symbol {
	p.once.Do(p.indexPaths)
	return p.paths[pathKey(module, path)]
}

func (p *Package) indexPaths() {
	p.paths = make(map[string][]atom.Symbol)
	for s := range p.Symbols() {
		key := pathKey(p.volume.ModuleID(s.Atom.Culture), s.Intrinsic.Path)
		p.paths[key] = append(p.paths[key], s.Atom)
	}
}

func pathKey(module string, path []string) string {
	return strings.ToLower(module + "/" + strings.Join(path, "/"))
}
