package volume

import (
	"slices"

	"docverse/internal/atom"
	"docverse/internal/divergence"
	"docverse/internal/entity"
	"docverse/internal/errors"
	"docverse/internal/graph"
	"docverse/internal/overlay"
	"docverse/internal/tree"
)

// Resolver resolves references from a package's graphs into other packages.
// It must not read the volume being committed.
type Resolver interface {
	// Module resolves an imported module name.
	Module(name string) (atom.Module, bool)
	// Symbol resolves a stable identifier among the modules in linked.
	Symbol(id string, linked atom.Linkage) (atom.Symbol, bool)
}

// Stats counts what one commit did.
type Stats struct {
	Modules    int `json:"modules"`
	Symbols    int `json:"symbols"`
	Articles   int `json:"articles"`
	Writes     int `json:"writes"`
	Removed    int `json:"removed"`
	Unresolved int `json:"unresolved"`
}

type committer struct {
	v       *Volume
	lineage tree.Lineage
	resolve Resolver
	stats   Stats

	cultures map[string]atom.Module
	local    map[string]atom.Symbol
}

// Fork creates a branch whose revision zero follows from.
func (v *Volume) Fork(name string, from tree.Version) (tree.Branch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := v.tree.Fork(name, from)
	if err != nil {
		return 0, err
	}
	v.logger.Info("Forked branch", "branch", name, "from", from.String())
	return b, nil
}

// Commit appends a revision to branch holding exactly the content of graphs,
// which must form a valid batch. Fields that did not change are not written;
// modules, symbols and articles absent from graphs are recorded as removed.
func (v *Volume) Commit(branch tree.Branch, graphs []*graph.Graph, info tree.RevisionInfo, resolve Resolver) (tree.Version, Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()

	at := tree.Version{Branch: branch, Revision: v.tree.Commit(branch, info)}
	c := &committer{
		v:        v,
		lineage:  v.tree.Lineage(at),
		resolve:  resolve,
		cultures: make(map[string]atom.Module, len(graphs)),
		local:    make(map[string]atom.Symbol),
	}

	graphs = graph.Order(graphs)
	for _, g := range graphs {
		m := v.atoms.InternModule(g.Culture)
		c.cultures[g.Culture] = m
		for _, s := range g.Symbols {
			a, created := v.atoms.InternSymbol(m, s.ID)
			if !created && a.Culture != m {
				v.logger.Debug("Symbol keeps its first module",
					"symbol", s.ID, "module", g.Culture, "owner", v.atoms.ModuleID(a.Culture))
			}
			c.local[s.ID] = a
		}
	}

	liveSymbols := make(map[atom.Symbol]struct{}, len(c.local))
	liveArticles := make(map[atom.Article]struct{})
	contributed := make(map[atom.Diacritic]struct{})
	for _, g := range graphs {
		linked := c.writeModule(g)
		for s := range c.writeSymbols(g, linked) {
			liveSymbols[s] = struct{}{}
		}
		for _, d := range c.writeOverlays(g, linked) {
			contributed[d] = struct{}{}
		}
		for _, a := range c.writeArticles(g) {
			liveArticles[a] = struct{}{}
		}
	}
	c.removeMissing(liveSymbols, liveArticles, contributed)

	v.logger.Debug("Committed revision",
		"version", at.String(),
		"writes", c.stats.Writes,
		"removed", c.stats.Removed,
		"unresolved", c.stats.Unresolved)
	return at, c.stats
}

func (c *committer) writeModule(g *graph.Graph) atom.Linkage {
	m := c.cultures[g.Culture]
	linked := atom.Link(m)
	var deps []atom.Module
	for _, name := range g.Dependencies {
		dep, ok := c.cultures[name]
		if !ok && c.resolve != nil {
			dep, ok = c.resolve.Module(name)
		}
		if !ok {
			c.stats.Unresolved++
			c.v.logger.Debug("Dropped unresolved module import", "module", g.Culture, "import", name)
			continue
		}
		if !linked.Contains(dep) {
			linked.Add(dep)
			deps = append(deps, dep)
		}
	}
	set(c, c.v.modules, m, divergence.ModuleMetadata, &entity.ModuleMetadata{Name: g.Culture, Language: g.Language}, false)
	set(c, c.v.modules, m, divergence.ModuleDependencies, deps, len(deps) == 0)
	c.stats.Modules++
	return linked
}

func (c *committer) symbol(id string, linked atom.Linkage) (atom.Symbol, bool) {
	if s, ok := c.local[id]; ok {
		return s, true
	}
	if c.resolve != nil {
		return c.resolve.Symbol(id, linked)
	}
	return atom.Symbol{}, false
}

func (c *committer) unresolved(g *graph.Graph, s graph.Symbol, r graph.Relationship) {
	c.stats.Unresolved++
	c.v.logger.Debug("Dropped unresolved relationship",
		"module", g.Culture, "symbol", s.ID, "kind", string(r.Kind), "target", r.Target)
}

func (c *committer) writeSymbols(g *graph.Graph, linked atom.Linkage) map[atom.Symbol]struct{} {
	members := make(map[atom.Symbol][]atom.Symbol)
	for _, s := range g.Symbols {
		for _, r := range s.Relationships {
			if r.Kind != graph.Member {
				continue
			}
			parent, ok := c.local[r.Target]
			if !ok {
				c.unresolved(g, s, r)
				continue
			}
			members[parent] = append(members[parent], c.local[s.ID])
		}
	}

	written := make(map[atom.Symbol]struct{}, len(g.Symbols))
	for _, s := range g.Symbols {
		a := c.local[s.ID]
		written[a] = struct{}{}

		path := s.Path
		if len(path) == 0 {
			path, _ = graph.PathOf(s.ID)
		}
		intrinsic := &entity.Intrinsic{
			Kind:         s.Kind,
			Path:         path,
			Language:     g.Language,
			Availability: s.Availability,
		}
		set(c, c.v.symbols, a, divergence.SymbolIntrinsic, intrinsic, false)
		set(c, c.v.symbols, a, divergence.SymbolDeclaration, s.Declaration, s.Declaration == "")

		var doc *entity.Extension
		if ext := entity.ParseExtension(s.Doc); !ext.IsEmpty() {
			doc = &ext
		}
		set(c, c.v.symbols, a, divergence.SymbolDocumentation, doc, doc == nil)

		var extends *atom.Symbol
		for _, r := range s.Relationships {
			if r.Kind != graph.Extends {
				continue
			}
			if target, ok := c.symbol(r.Target, linked); ok {
				extends = &target
				break
			}
			c.unresolved(g, s, r)
		}
		set(c, c.v.symbols, a, divergence.SymbolExtends, extends, extends == nil)
		set(c, c.v.symbols, a, divergence.SymbolMembers, members[a], len(members[a]) == 0)
		c.stats.Symbols++
	}
	return written
}

type contribution struct {
	conformances []atom.Symbol
	features     []atom.Symbol
	constraints  []string
}

func (c *committer) writeOverlays(g *graph.Graph, linked atom.Linkage) []atom.Diacritic {
	culture := c.cultures[g.Culture]
	byDiacritic := make(map[atom.Diacritic]*contribution)
	var order []atom.Diacritic
	contribute := func(d atom.Diacritic) *contribution {
		k, ok := byDiacritic[d]
		if !ok {
			k = &contribution{}
			byDiacritic[d] = k
			order = append(order, d)
		}
		return k
	}

	for _, s := range g.Symbols {
		self := c.local[s.ID]
		for _, r := range s.Relationships {
			if r.Kind != graph.Conformance && r.Kind != graph.Feature {
				continue
			}
			target, ok := c.symbol(r.Target, linked)
			if !ok {
				c.unresolved(g, s, r)
				continue
			}
			var k *contribution
			if r.Kind == graph.Conformance {
				k = contribute(atom.Diacritic{Host: self, Culture: culture})
				if !slices.Contains(k.conformances, target) {
					k.conformances = append(k.conformances, target)
				}
			} else {
				k = contribute(atom.Diacritic{Host: target, Culture: culture})
				if !slices.Contains(k.features, self) {
					k.features = append(k.features, self)
				}
			}
			for _, constraint := range r.Constraints {
				if !slices.Contains(k.constraints, constraint) {
					k.constraints = append(k.constraints, constraint)
				}
			}
		}
	}

	for _, d := range order {
		k := byDiacritic[d]
		setOverlay(c, d, overlay.Conformances, k.conformances, len(k.conformances) == 0)
		setOverlay(c, d, overlay.Features, k.features, len(k.features) == 0)
		setOverlay(c, d, overlay.Constraints, k.constraints, len(k.constraints) == 0)
	}
	return order
}

func (c *committer) writeArticles(g *graph.Graph) []atom.Article {
	culture := c.cultures[g.Culture]
	out := make([]atom.Article, 0, len(g.Articles))
	for _, a := range g.Articles {
		art := c.v.atoms.InternArticle(culture, a.ID)
		set(c, c.v.articles, art, divergence.ArticleMetadata,
			&entity.ArticleMetadata{Name: a.Name, Headline: a.Headline}, false)

		var body *entity.Extension
		if ext := entity.ParseExtension(a.Body); !ext.IsEmpty() {
			body = &ext
		}
		set(c, c.v.articles, art, divergence.ArticleBody, body, body == nil)
		out = append(out, art)
		c.stats.Articles++
	}
	return out
}

// removeMissing records a nil value for every entity that is live as of the
// parent lineage but absent from the batch.
func (c *committer) removeMissing(symbols map[atom.Symbol]struct{}, articles map[atom.Article]struct{}, contributed map[atom.Diacritic]struct{}) {
	v := c.v
	for _, m := range v.moduleAtoms() {
		if meta, _ := divergence.Read(v.modules, m, divergence.ModuleMetadata, c.lineage); meta != nil {
			if _, ok := c.cultures[v.atoms.ModuleID(m)]; !ok {
				set(c, v.modules, m, divergence.ModuleMetadata, nil, true)
				c.stats.Removed++
			}
		}

		for off := range v.atoms.Symbols(m) {
			s := atom.Symbol{Culture: m, Offset: atom.SymbolOffset(off)}
			if _, ok := symbols[s]; ok {
				continue
			}
			if in, _ := divergence.Read(v.symbols, s, divergence.SymbolIntrinsic, c.lineage); in != nil {
				set(c, v.symbols, s, divergence.SymbolIntrinsic, nil, true)
				c.stats.Removed++
			}
		}

		for off := range v.atoms.Articles(m) {
			a := atom.Article{Culture: m, Offset: atom.ArticleOffset(off)}
			if _, ok := articles[a]; ok {
				continue
			}
			if meta, _ := divergence.Read(v.articles, a, divergence.ArticleMetadata, c.lineage); meta != nil {
				set(c, v.articles, a, divergence.ArticleMetadata, nil, true)
				c.stats.Removed++
			}
		}

		for d := range v.overlays.Contributed(m) {
			if _, ok := contributed[d]; ok {
				continue
			}
			setOverlay(c, d, overlay.Conformances, nil, true)
			setOverlay(c, d, overlay.Features, nil, true)
			setOverlay(c, d, overlay.Constraints, nil, true)
		}
	}
}

// set writes value unless it equals the current value. An empty value is not
// written for a field that was never set.
func set[K comparable, R, T any](c *committer, t *divergence.Table[K, R], k K, f divergence.Field[R, T], value T, empty bool) {
	if empty {
		if _, ok := divergence.Read(t, k, f, c.lineage); !ok {
			return
		}
	}
	if divergence.Update(t, k, f, c.lineage, value) {
		c.stats.Writes++
	}
}

func setOverlay[T any](c *committer, d atom.Diacritic, a overlay.Accessor[T], value T, empty bool) {
	if empty {
		if _, ok := overlay.Head(c.v.overlays, d, a, c.lineage); !ok {
			return
		}
	}
	if overlay.Set(c.v.overlays, d, a, c.lineage, value) {
		c.stats.Writes++
	}
}

// Erode rolls branch back to until, dropping every later revision and every
// field value written after it. It is refused if a child branch was forked
// from a dropped revision.
func (v *Volume) Erode(branch tree.Branch, until tree.Revision) (divergence.Report, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var report divergence.Report
	if int(branch) >= v.tree.Branches() {
		return report, errors.Errorf(errors.UnknownBranch, "branch %d does not exist in %q", branch, v.name)
	}
	if err := v.tree.Erode(branch, until); err != nil {
		return report, err
	}
	v.modules.Revert(v.modules.Erode(branch, until), &report)
	v.symbols.Revert(v.symbols.Erode(branch, until), &report)
	v.articles.Revert(v.articles.Erode(branch, until), &report)
	v.overlays.Revert(v.overlays.Erode(branch, until), &report)

	v.logger.Info("Eroded branch",
		"branch", v.tree.Name(branch),
		"until", int(until),
		"removedRecords", report.Removed)
	return report, nil
}
