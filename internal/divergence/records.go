package divergence

import (
	"slices"

	"docverse/internal/atom"
	"docverse/internal/entity"
)

// ModuleDivergence holds the versioned fields of one module.
type ModuleDivergence struct {
	Metadata     *Chain[*entity.ModuleMetadata]
	Dependencies *Chain[[]atom.Module]
}

// SymbolDivergence holds the versioned fields of one symbol.
type SymbolDivergence struct {
	Intrinsic     *Chain[*entity.Intrinsic]
	Declaration   *Chain[string]
	Documentation *Chain[*entity.Extension]
	Extends       *Chain[*atom.Symbol]
	Members       *Chain[[]atom.Symbol]
}

// ArticleDivergence holds the versioned fields of one article.
type ArticleDivergence struct {
	Metadata *Chain[*entity.ArticleMetadata]
	Body     *Chain[*entity.Extension]
}

var (
	ModuleMetadata = NewField("metadata",
		func(r *ModuleDivergence) **Chain[*entity.ModuleMetadata] { return &r.Metadata },
		entity.EqualModuleMetadata)
	ModuleDependencies = NewField("dependencies",
		func(r *ModuleDivergence) **Chain[[]atom.Module] { return &r.Dependencies },
		slices.Equal[[]atom.Module])

	SymbolIntrinsic = NewField("intrinsic",
		func(r *SymbolDivergence) **Chain[*entity.Intrinsic] { return &r.Intrinsic },
		entity.EqualIntrinsic)
	SymbolDeclaration = NewField("declaration",
		func(r *SymbolDivergence) **Chain[string] { return &r.Declaration },
		func(a, b string) bool { return a == b })
	SymbolDocumentation = NewField("documentation",
		func(r *SymbolDivergence) **Chain[*entity.Extension] { return &r.Documentation },
		entity.EqualExtension)
	SymbolExtends = NewField("extends",
		func(r *SymbolDivergence) **Chain[*atom.Symbol] { return &r.Extends },
		equalPointer[atom.Symbol])
	SymbolMembers = NewField("members",
		func(r *SymbolDivergence) **Chain[[]atom.Symbol] { return &r.Members },
		slices.Equal[[]atom.Symbol])

	ArticleMetadata = NewField("metadata",
		func(r *ArticleDivergence) **Chain[*entity.ArticleMetadata] { return &r.Metadata },
		entity.EqualArticleMetadata)
	ArticleBody = NewField("body",
		func(r *ArticleDivergence) **Chain[*entity.Extension] { return &r.Body },
		entity.EqualExtension)
)

var (
	ModuleSchema  = NewSchema[ModuleDivergence]("module", ModuleMetadata, ModuleDependencies)
	SymbolSchema  = NewSchema[SymbolDivergence]("symbol", SymbolIntrinsic, SymbolDeclaration, SymbolDocumentation, SymbolExtends, SymbolMembers)
	ArticleSchema = NewSchema[ArticleDivergence]("article", ArticleMetadata, ArticleBody)
)

// Table aliases for the three entity kinds.
type (
	ModuleTable  = Table[atom.Module, ModuleDivergence]
	SymbolTable  = Table[atom.Symbol, SymbolDivergence]
	ArticleTable = Table[atom.Article, ArticleDivergence]
)

// IsEmpty reports whether no field has an alternate chain.
func (d *ModuleDivergence) IsEmpty() bool { return ModuleSchema.IsEmpty(d) }

// Revert truncates every chain of d to rb and reports whether d became empty.
func (d *ModuleDivergence) Revert(rb Rollbacks, report *Report) bool {
	return ModuleSchema.Revert(d, rb, report)
}

// IsEmpty reports whether no field has an alternate chain.
func (d *SymbolDivergence) IsEmpty() bool { return SymbolSchema.IsEmpty(d) }

// Revert truncates every chain of d to rb and reports whether d became empty.
func (d *SymbolDivergence) Revert(rb Rollbacks, report *Report) bool {
	return SymbolSchema.Revert(d, rb, report)
}

// IsEmpty reports whether no field has an alternate chain.
func (d *ArticleDivergence) IsEmpty() bool { return ArticleSchema.IsEmpty(d) }

// Revert truncates every chain of d to rb and reports whether d became empty.
func (d *ArticleDivergence) Revert(rb Rollbacks, report *Report) bool {
	return ArticleSchema.Revert(d, rb, report)
}

func equalPointer[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
