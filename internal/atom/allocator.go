package atom

import (
	"fmt"
	"math"
	"sync"
)

// Allocator hands out atoms for one package and maps stable string identifiers
// to them. It is append-only; concurrent readers are safe.
type Allocator struct {
	mu  sync.RWMutex
	pkg Package

	modules     []string
	moduleIndex map[string]Module

	symbols     map[Module][]string
	symbolIndex map[string]Symbol

	articles     map[Module][]string
	articleIndex map[string]Article
}

// NewAllocator creates an empty allocator for pkg.
func NewAllocator(pkg Package) *Allocator {
	return &Allocator{
		pkg:          pkg,
		moduleIndex:  make(map[string]Module),
		symbols:      make(map[Module][]string),
		symbolIndex:  make(map[string]Symbol),
		articles:     make(map[Module][]string),
		articleIndex: make(map[string]Article),
	}
}

// Package returns the package the allocator belongs to.
func (a *Allocator) Package() Package {
	return a.pkg
}

// AllocateModule returns the next unused module atom.
func (a *Allocator) AllocateModule() Module {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateModule("")
}

// AllocateSymbol returns the next unused symbol atom in culture.
func (a *Allocator) AllocateSymbol(culture Module) Symbol {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateSymbol(culture, "")
}

// AllocateArticle returns the next unused article atom in culture.
func (a *Allocator) AllocateArticle(culture Module) Article {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateArticle(culture, "")
}

// InternModule returns the atom for the module named id, allocating it on
// first sight.
func (a *Allocator) InternModule(id string) Module {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.moduleIndex[id]; ok {
		return m
	}
	return a.allocateModule(id)
}

// InternSymbol returns the atom for the symbol id, allocating it in culture on
// first sight. An id keeps the culture it was first allocated in.
func (a *Allocator) InternSymbol(culture Module, id string) (Symbol, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.symbolIndex[id]; ok {
		return s, false
	}
	return a.allocateSymbol(culture, id), true
}

// InternArticle returns the atom for the article id, allocating it in culture
// on first sight.
func (a *Allocator) InternArticle(culture Module, id string) Article {
	a.mu.Lock()
	defer a.mu.Unlock()
	if art, ok := a.articleIndex[id]; ok {
		return art
	}
	return a.allocateArticle(culture, id)
}

// FindModule returns the atom of the module named id, if allocated.
func (a *Allocator) FindModule(id string) (Module, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.moduleIndex[id]
	return m, ok
}

// FindSymbol returns the atom of the symbol id, if allocated.
func (a *Allocator) FindSymbol(id string) (Symbol, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.symbolIndex[id]
	return s, ok
}

// FindArticle returns the atom of the article id, if allocated.
func (a *Allocator) FindArticle(id string) (Article, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	art, ok := a.articleIndex[id]
	return art, ok
}

// ModuleID returns the stable identifier of m, or "" if it was allocated
// anonymously.
func (a *Allocator) ModuleID(m Module) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	a.checkModule(m)
	return a.modules[m.Offset]
}

// SymbolID returns the stable identifier of s.
func (a *Allocator) SymbolID(s Symbol) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.symbols[s.Culture]
	if s.Culture.Package != a.pkg || int(s.Offset) >= len(ids) {
		panic(fmt.Sprintf("atom: symbol %s was never allocated", s))
	}
	return ids[s.Offset]
}

// ArticleID returns the stable identifier of art.
func (a *Allocator) ArticleID(art Article) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.articles[art.Culture]
	if art.Culture.Package != a.pkg || int(art.Offset) >= len(ids) {
		panic(fmt.Sprintf("atom: article %s was never allocated", art))
	}
	return ids[art.Offset]
}

// Modules returns the number of allocated modules. Module offsets are dense, so
// every offset below the count is a valid atom.
func (a *Allocator) Modules() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.modules)
}

// Symbols returns the number of symbols allocated in culture.
func (a *Allocator) Symbols(culture Module) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.symbols[culture])
}

// Articles returns the number of articles allocated in culture.
func (a *Allocator) Articles(culture Module) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.articles[culture])
}

// Contains reports whether s was allocated by this allocator.
func (a *Allocator) Contains(s Symbol) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return s.Culture.Package == a.pkg && int(s.Offset) < len(a.symbols[s.Culture])
}

func (a *Allocator) allocateModule(id string) Module {
	if len(a.modules) > math.MaxUint16 {
		panic(fmt.Sprintf("atom: module offsets exhausted in package %d", a.pkg))
	}
	m := Module{Package: a.pkg, Offset: ModuleOffset(len(a.modules))}
	a.modules = append(a.modules, id)
	if id != "" {
		a.moduleIndex[id] = m
	}
	return m
}

func (a *Allocator) allocateSymbol(culture Module, id string) Symbol {
	a.checkModule(culture)
	ids := a.symbols[culture]
	if uint64(len(ids)) > math.MaxUint32 {
		panic(fmt.Sprintf("atom: symbol offsets exhausted in culture %s", culture))
	}
	s := Symbol{Culture: culture, Offset: SymbolOffset(len(ids))}
	a.symbols[culture] = append(ids, id)
	if id != "" {
		a.symbolIndex[id] = s
	}
	return s
}

func (a *Allocator) allocateArticle(culture Module, id string) Article {
	a.checkModule(culture)
	ids := a.articles[culture]
	if uint64(len(ids)) > math.MaxUint32 {
		panic(fmt.Sprintf("atom: article offsets exhausted in culture %s", culture))
	}
	art := Article{Culture: culture, Offset: ArticleOffset(len(ids))}
	a.articles[culture] = append(ids, id)
	if id != "" {
		a.articleIndex[id] = art
	}
	return art
}

func (a *Allocator) checkModule(m Module) {
	if m.Package != a.pkg || int(m.Offset) >= len(a.modules) {
		panic(fmt.Sprintf("atom: module %s was never allocated in package %d", m, a.pkg))
	}
}
