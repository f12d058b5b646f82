// Package volume holds the complete versioned state of one package: its atom
// allocator, its branch tree, and the divergence tables of its modules,
// symbols, articles and overlays.
//
// A volume has a single writer and many readers. Every method takes the
// volume's lock for its own duration, so a pinned view can be read while the
// package is being ingested or rolled back.
package volume

import (
	"iter"
	"log/slog"
	"slices"
	"sync"

	"docverse/internal/atom"
	"docverse/internal/divergence"
	"docverse/internal/entity"
	"docverse/internal/overlay"
	"docverse/internal/slogutil"
	"docverse/internal/tree"
)

// Volume is the store of one package.
type Volume struct {
	mu sync.RWMutex

	id   atom.Package
	name string

	atoms    *atom.Allocator
	tree     *tree.Tree
	modules  *divergence.ModuleTable
	symbols  *divergence.SymbolTable
	articles *divergence.ArticleTable
	overlays *overlay.Table

	logger *slog.Logger
}

// New creates an empty volume whose default branch is named defaultBranch.
func New(id atom.Package, name, defaultBranch string, logger *slog.Logger) *Volume {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Volume{
		id:       id,
		name:     name,
		atoms:    atom.NewAllocator(id),
		tree:     tree.New(defaultBranch),
		modules:  divergence.NewTable[atom.Module](divergence.ModuleSchema),
		symbols:  divergence.NewTable[atom.Symbol](divergence.SymbolSchema),
		articles: divergence.NewTable[atom.Article](divergence.ArticleSchema),
		overlays: overlay.NewTable(),
		logger:   logger.With("package", name),
	}
}

// ID returns the package id.
func (v *Volume) ID() atom.Package { return v.id }

// Name returns the package name.
func (v *Volume) Name() string { return v.name }

// ModuleView is a module as of one version.
type ModuleView struct {
	Atom         atom.Module
	ID           string
	Metadata     entity.ModuleMetadata
	Dependencies []atom.Module
}

// SymbolView is a symbol as of one version.
type SymbolView struct {
	Atom          atom.Symbol
	ID            string
	Intrinsic     *entity.Intrinsic
	Declaration   string
	Documentation entity.Extension
	Extends       *atom.Symbol
	Members       []atom.Symbol
}

// ArticleView is an article as of one version.
type ArticleView struct {
	Atom     atom.Article
	ID       string
	Metadata entity.ArticleMetadata
	Body     entity.Extension
}

// OverlayView is what one culture contributes to a host as of one version.
type OverlayView struct {
	Diacritic    atom.Diacritic
	Conformances []atom.Symbol
	Features     []atom.Symbol
	Constraints  []string
}

// Lineage returns the lineage of version at.
func (v *Volume) Lineage(at tree.Version) tree.Lineage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Lineage(at)
}

// Exists reports whether at is a committed version.
func (v *Volume) Exists(at tree.Version) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Exists(at)
}

// Find resolves a selector to a committed version.
func (v *Volume) Find(sel tree.Selector) (tree.Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Find(sel)
}

// Default returns the head of the default branch.
func (v *Volume) Default() (tree.Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Default()
}

// Head returns the head of branch.
func (v *Volume) Head(branch tree.Branch) (tree.Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if int(branch) >= v.tree.Branches() {
		return tree.Version{}, false
	}
	return v.tree.Head(branch)
}

// Branch looks up a branch by name.
func (v *Volume) Branch(name string) (tree.Branch, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Lookup(name)
}

// BranchInfo describes one branch.
type BranchInfo struct {
	Branch tree.Branch   `json:"branch"`
	Name   string        `json:"name"`
	Fork   *tree.Version `json:"fork,omitempty"`
	Head   *tree.Version `json:"head,omitempty"`
}

// Branches lists every branch in index order.
func (v *Volume) Branches() []BranchInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]BranchInfo, v.tree.Branches())
	for i := range out {
		b := tree.Branch(i)
		out[i] = BranchInfo{Branch: b, Name: v.tree.Name(b)}
		if fork, ok := v.tree.Parent(b); ok {
			out[i].Fork = &fork
		}
		if head, ok := v.tree.Head(b); ok {
			out[i].Head = &head
		}
	}
	return out
}

// Info returns the record of a committed version.
func (v *Volume) Info(at tree.Version) tree.RevisionInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Info(at)
}

// Pin returns the lineage and record of at in one read, or false if at is
// not committed.
func (v *Volume) Pin(at tree.Version) (tree.Lineage, tree.RevisionInfo, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	info, ok := v.tree.Record(at)
	if !ok {
		return nil, tree.RevisionInfo{}, false
	}
	return v.tree.Lineage(at), info, true
}

// Record returns the record of at, or false if at is not committed.
func (v *Volume) Record(at tree.Version) (tree.RevisionInfo, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree.Record(at)
}

// PinsBeyond returns the first committed version of v whose pins reference a
// revision of dep's branch b later than until.
func (v *Volume) PinsBeyond(dep atom.Package, b tree.Branch, until tree.Revision) (tree.Version, tree.Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for at, info := range v.tree.All() {
		if pin, ok := info.Pins[dep]; ok && pin.Branch == b && pin.Revision > until {
			return at, pin, true
		}
	}
	return tree.Version{}, tree.Version{}, false
}

// FindSymbol maps a stable identifier to its atom.
func (v *Volume) FindSymbol(id string) (atom.Symbol, bool) {
	return v.atoms.FindSymbol(id)
}

// FindModule maps a module name to its atom.
func (v *Volume) FindModule(name string) (atom.Module, bool) {
	return v.atoms.FindModule(name)
}

// ModuleID returns the name of m.
func (v *Volume) ModuleID(m atom.Module) string {
	return v.atoms.ModuleID(m)
}

// SymbolID returns the stable identifier of s.
func (v *Volume) SymbolID(s atom.Symbol) string {
	return v.atoms.SymbolID(s)
}

// Module returns module m as of lineage. A module that is unset or was
// removed is not found.
func (v *Volume) Module(m atom.Module, lineage tree.Lineage) (ModuleView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.module(m, lineage)
}

func (v *Volume) module(m atom.Module, lineage tree.Lineage) (ModuleView, bool) {
	meta, ok := divergence.Read(v.modules, m, divergence.ModuleMetadata, lineage)
	if !ok || meta == nil {
		return ModuleView{}, false
	}
	deps, _ := divergence.Read(v.modules, m, divergence.ModuleDependencies, lineage)
	return ModuleView{Atom: m, ID: v.atoms.ModuleID(m), Metadata: *meta, Dependencies: deps}, true
}

// Intrinsic returns the intrinsic of s as of lineage, or nil if the symbol is
// not live.
func (v *Volume) Intrinsic(s atom.Symbol, lineage tree.Lineage) *entity.Intrinsic {
	v.mu.RLock()
	defer v.mu.RUnlock()
	in, _ := divergence.Read(v.symbols, s, divergence.SymbolIntrinsic, lineage)
	return in
}

// Symbol returns symbol s as of lineage.
func (v *Volume) Symbol(s atom.Symbol, lineage tree.Lineage) (SymbolView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.symbol(s, lineage)
}

func (v *Volume) symbol(s atom.Symbol, lineage tree.Lineage) (SymbolView, bool) {
	in, _ := divergence.Read(v.symbols, s, divergence.SymbolIntrinsic, lineage)
	if in == nil {
		return SymbolView{}, false
	}
	view := SymbolView{Atom: s, ID: v.atoms.SymbolID(s), Intrinsic: in}
	view.Declaration, _ = divergence.Read(v.symbols, s, divergence.SymbolDeclaration, lineage)
	if doc, _ := divergence.Read(v.symbols, s, divergence.SymbolDocumentation, lineage); doc != nil {
		view.Documentation = *doc
	}
	view.Extends, _ = divergence.Read(v.symbols, s, divergence.SymbolExtends, lineage)
	view.Members, _ = divergence.Read(v.symbols, s, divergence.SymbolMembers, lineage)
	return view, true
}

// Documentation returns the own documentation of s and the symbol it extends,
// as of lineage.
func (v *Volume) Documentation(s atom.Symbol, lineage tree.Lineage) (entity.Extension, *atom.Symbol) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var ext entity.Extension
	if doc, _ := divergence.Read(v.symbols, s, divergence.SymbolDocumentation, lineage); doc != nil {
		ext = *doc
	}
	extends, _ := divergence.Read(v.symbols, s, divergence.SymbolExtends, lineage)
	return ext, extends
}

// Article returns article a as of lineage.
func (v *Volume) Article(a atom.Article, lineage tree.Lineage) (ArticleView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.article(a, lineage)
}

func (v *Volume) article(a atom.Article, lineage tree.Lineage) (ArticleView, bool) {
	meta, _ := divergence.Read(v.articles, a, divergence.ArticleMetadata, lineage)
	if meta == nil {
		return ArticleView{}, false
	}
	view := ArticleView{Atom: a, ID: v.atoms.ArticleID(a), Metadata: *meta}
	if body, _ := divergence.Read(v.articles, a, divergence.ArticleBody, lineage); body != nil {
		view.Body = *body
	}
	return view, true
}

// Overlays returns what every culture contributes to host as of lineage,
// ordered by culture.
func (v *Volume) Overlays(host atom.Symbol, lineage tree.Lineage) []OverlayView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []OverlayView
	for d := range v.overlays.Diacritics(host) {
		if view, ok := v.overlay(d, lineage); ok {
			out = append(out, view)
		}
	}
	return out
}

func (v *Volume) overlay(d atom.Diacritic, lineage tree.Lineage) (OverlayView, bool) {
	view := OverlayView{Diacritic: d}
	view.Conformances, _ = overlay.Head(v.overlays, d, overlay.Conformances, lineage)
	view.Features, _ = overlay.Head(v.overlays, d, overlay.Features, lineage)
	view.Constraints, _ = overlay.Head(v.overlays, d, overlay.Constraints, lineage)
	if len(view.Conformances) == 0 && len(view.Features) == 0 {
		return OverlayView{}, false
	}
	return view, true
}

// Modules yields every live module as of lineage in allocation order.
func (v *Volume) Modules(lineage tree.Lineage) iter.Seq[ModuleView] {
	return func(yield func(ModuleView) bool) {
		for _, m := range v.moduleAtoms() {
			view, ok := v.Module(m, lineage)
			if !ok {
				continue
			}
			if !yield(view) {
				return
			}
		}
	}
}

// Symbols yields every live symbol as of lineage, grouped by culture in
// allocation order.
func (v *Volume) Symbols(lineage tree.Lineage) iter.Seq[SymbolView] {
	return func(yield func(SymbolView) bool) {
		for _, m := range v.moduleAtoms() {
			for off := range v.atoms.Symbols(m) {
				view, ok := v.Symbol(atom.Symbol{Culture: m, Offset: atom.SymbolOffset(off)}, lineage)
				if !ok {
					continue
				}
				if !yield(view) {
					return
				}
			}
		}
	}
}

// Articles yields every live article as of lineage.
func (v *Volume) Articles(lineage tree.Lineage) iter.Seq[ArticleView] {
	return func(yield func(ArticleView) bool) {
		for _, m := range v.moduleAtoms() {
			for off := range v.atoms.Articles(m) {
				view, ok := v.Article(atom.Article{Culture: m, Offset: atom.ArticleOffset(off)}, lineage)
				if !ok {
					continue
				}
				if !yield(view) {
					return
				}
			}
		}
	}
}

func (v *Volume) moduleAtoms() []atom.Module {
	n := v.atoms.Modules()
	out := make([]atom.Module, n)
	for i := range out {
		out[i] = atom.Module{Package: v.id, Offset: atom.ModuleOffset(i)}
	}
	return out
}

// Change is one revision at which a symbol's own chains on a branch changed.
type Change struct {
	Revision tree.Revision `json:"revision"`
	Fields   []string      `json:"fields"`
	Removed  bool          `json:"removed,omitempty"`
}

// History lists the revisions at which s changed on branch itself, oldest
// first. Inherited history is not included.
func (v *Volume) History(s atom.Symbol, branch tree.Branch) []Change {
	v.mu.RLock()
	defer v.mu.RUnlock()

	byRev := make(map[tree.Revision]*Change)
	var order []tree.Revision
	note := func(rev tree.Revision, field string) *Change {
		c, ok := byRev[rev]
		if !ok {
			c = &Change{Revision: rev}
			byRev[rev] = c
			order = append(order, rev)
		}
		c.Fields = append(c.Fields, field)
		return c
	}
	for rev, in := range divergence.History(v.symbols, s, divergence.SymbolIntrinsic, branch) {
		note(rev, divergence.SymbolIntrinsic.Name()).Removed = in == nil
	}
	for rev := range divergence.History(v.symbols, s, divergence.SymbolDeclaration, branch) {
		note(rev, divergence.SymbolDeclaration.Name())
	}
	for rev := range divergence.History(v.symbols, s, divergence.SymbolDocumentation, branch) {
		note(rev, divergence.SymbolDocumentation.Name())
	}
	for rev := range divergence.History(v.symbols, s, divergence.SymbolExtends, branch) {
		note(rev, divergence.SymbolExtends.Name())
	}
	for rev := range divergence.History(v.symbols, s, divergence.SymbolMembers, branch) {
		note(rev, divergence.SymbolMembers.Name())
	}
	slices.Sort(order)
	out := make([]Change, len(order))
	for i, rev := range order {
		out[i] = *byRev[rev]
	}
	return out
}
