package divergence

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"docverse/internal/atom"
	"docverse/internal/entity"
	"docverse/internal/tree"
)

var (
	culture = atom.Module{Package: 1, Offset: 0}
	symA    = atom.Symbol{Culture: culture, Offset: 0}
	symB    = atom.Symbol{Culture: culture, Offset: 1}
	symC    = atom.Symbol{Culture: culture, Offset: 2}
)

func v(b tree.Branch, r tree.Revision) tree.Version {
	return tree.Version{Branch: b, Revision: r}
}

func TestChainAt(t *testing.T) {
	var c *Chain[string]
	if _, ok := c.At(3); ok {
		t.Fatal("nil chain returned a value")
	}
	c = &Chain[string]{}
	c.push(2, "two")
	c.push(5, "five")
	c.push(5, "five'")

	tests := []struct {
		rev  tree.Revision
		want string
		ok   bool
	}{
		{0, "", false},
		{1, "", false},
		{2, "two", true},
		{4, "two", true},
		{5, "five'", true},
		{100, "five'", true},
	}
	for _, tt := range tests {
		got, ok := c.At(tt.rev)
		if got != tt.want || ok != tt.ok {
			t.Errorf("At(%d) = %q, %v; want %q, %v", tt.rev, got, ok, tt.want, tt.ok)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestChainPushBehindHeadPanics(t *testing.T) {
	c := &Chain[int]{}
	c.push(4, 1)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	c.push(3, 2)
}

func TestSchemaCoversRecordFields(t *testing.T) {
	tests := []struct {
		name   string
		typ    reflect.Type
		fields []string
	}{
		{"module", reflect.TypeOf(ModuleDivergence{}), ModuleSchema.Fields()},
		{"symbol", reflect.TypeOf(SymbolDivergence{}), SymbolSchema.Fields()},
		{"article", reflect.TypeOf(ArticleDivergence{}), ArticleSchema.Fields()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.typ.NumField() != len(tt.fields) {
				t.Fatalf("%s has %d struct fields but schema declares %d", tt.typ, tt.typ.NumField(), len(tt.fields))
			}
			seen := make(map[string]bool)
			for _, f := range tt.fields {
				if seen[f] {
					t.Errorf("field %q declared twice", f)
				}
				seen[f] = true
			}
		})
	}
}

func TestSchemaIsEmptyTracksEveryField(t *testing.T) {
	var d SymbolDivergence
	if !d.IsEmpty() {
		t.Fatal("zero record is not empty")
	}
	d.Members = &Chain[[]atom.Symbol]{}
	d.Members.push(1, []atom.Symbol{symB})
	if d.IsEmpty() {
		t.Fatal("record with a members chain reports empty")
	}
	if !d.Revert(Rollbacks{Until: 0}, nil) {
		t.Fatal("reverting the only entry should empty the record")
	}
	if d.Members != nil {
		t.Error("emptied chain was not cleared")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	intrinsic := &entity.Intrinsic{Kind: entity.KindStruct, Path: []string{"Deque"}}
	doc := &entity.Extension{Card: "A double-ended queue."}

	Write(symbols, symA, SymbolIntrinsic, v(0, 0), intrinsic)
	Write(symbols, symA, SymbolDocumentation, v(0, 0), doc)
	Write(symbols, symA, SymbolDeclaration, v(0, 1), "struct Deque<T>")

	lineage := tree.Lineage{v(0, 1)}
	if got, ok := Read(symbols, symA, SymbolIntrinsic, lineage); !ok || got != intrinsic {
		t.Errorf("intrinsic = %v, %v", got, ok)
	}
	if got, ok := Read(symbols, symA, SymbolDocumentation, lineage); !ok || got != doc {
		t.Errorf("documentation = %v, %v", got, ok)
	}
	if got, ok := Read(symbols, symA, SymbolDeclaration, lineage); !ok || got != "struct Deque<T>" {
		t.Errorf("declaration = %q, %v", got, ok)
	}
	if _, ok := Read(symbols, symA, SymbolDeclaration, tree.Lineage{v(0, 0)}); ok {
		t.Error("declaration should be unset as of revision 0")
	}
	if _, ok := Read(symbols, symA, SymbolExtends, lineage); ok {
		t.Error("extends was never written")
	}
}

func TestRecordedNilIsDistinctFromUnset(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	Write(symbols, symA, SymbolIntrinsic, v(0, 0), &entity.Intrinsic{Kind: entity.KindFunction})
	Write(symbols, symA, SymbolIntrinsic, v(0, 1), nil)

	got, ok := Read(symbols, symA, SymbolIntrinsic, tree.Lineage{v(0, 1)})
	if !ok || got != nil {
		t.Errorf("Read = %v, %v; want recorded nil", got, ok)
	}
}

func TestForkInheritsUnmodifiedFields(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	Write(symbols, symA, SymbolDeclaration, v(0, 0), "func a()")
	Write(symbols, symA, SymbolDeclaration, v(0, 3), "func a() throws")
	Write(symbols, symB, SymbolDeclaration, v(0, 1), "func b()")

	// Branch 1 forked from 0:2.
	fork := v(0, 2)
	for rev := tree.Revision(0); rev < 4; rev++ {
		lineage := tree.Lineage{v(1, rev), fork}
		got, _ := Read(symbols, symA, SymbolDeclaration, lineage)
		want, _ := Read(symbols, symA, SymbolDeclaration, tree.Lineage{fork})
		if got != want {
			t.Errorf("branch 1 rev %d: got %q, want %q", rev, got, want)
		}
	}
	if symbols.Diverged(1) != 0 {
		t.Error("reading created override records")
	}

	Write(symbols, symB, SymbolDeclaration, v(1, 1), "func b(x: Int)")
	if symbols.Diverged(1) != 1 {
		t.Fatalf("Diverged(1) = %d, want 1", symbols.Diverged(1))
	}
	if got, _ := Read(symbols, symB, SymbolDeclaration, tree.Lineage{v(1, 0), fork}); got != "func b()" {
		t.Errorf("before override: %q", got)
	}
	if got, _ := Read(symbols, symB, SymbolDeclaration, tree.Lineage{v(1, 1), fork}); got != "func b(x: Int)" {
		t.Errorf("after override: %q", got)
	}
	if got, _ := Read(symbols, symB, SymbolDeclaration, tree.Lineage{v(0, 3)}); got != "func b()" {
		t.Errorf("parent changed by override: %q", got)
	}
}

func TestUpdateSkipsEqualValues(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	members := []atom.Symbol{symB, symC}
	if !Update(symbols, symA, SymbolMembers, tree.Lineage{v(0, 0)}, members) {
		t.Fatal("first update did not write")
	}
	if Update(symbols, symA, SymbolMembers, tree.Lineage{v(0, 1)}, slices.Clone(members)) {
		t.Error("equal update wrote")
	}
	if Update(symbols, symA, SymbolMembers, tree.Lineage{v(1, 0), v(0, 1)}, slices.Clone(members)) {
		t.Error("equal update on a fork wrote")
	}
	if symbols.Diverged(1) != 0 {
		t.Error("equal update created an override record")
	}
}

func TestErodeIsIdempotent(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	Write(symbols, symA, SymbolDeclaration, v(0, 0), "a0")
	Write(symbols, symB, SymbolDeclaration, v(0, 0), "b0")
	Write(symbols, symA, SymbolDeclaration, v(1, 0), "a1.0")
	Write(symbols, symA, SymbolDeclaration, v(1, 2), "a1.2")
	Write(symbols, symB, SymbolDeclaration, v(1, 3), "b1.3")

	lineage := func(r tree.Revision) tree.Lineage { return tree.Lineage{v(1, r), v(0, 0)} }
	before := make([]string, 2)
	for r := range before {
		before[r], _ = Read(symbols, symA, SymbolDeclaration, lineage(tree.Revision(r)))
	}

	var report Report
	e := symbols.Erode(1, 1)
	if len(e.Keys) != 2 {
		t.Fatalf("erosion touched %v, want 2 keys", e.Keys)
	}
	symbols.Revert(e, &report)
	if report.Removed != 1 {
		t.Errorf("Removed = %d, want 1 (symB's record)", report.Removed)
	}
	if report.Truncated["symbol.declaration"] != 2 {
		t.Errorf("Truncated = %v", report.Truncated)
	}

	again := symbols.Erode(1, 1)
	if len(again.Keys) != 0 {
		t.Errorf("second erosion touched %v", again.Keys)
	}
	symbols.Revert(again, nil)

	for r := range before {
		got, _ := Read(symbols, symA, SymbolDeclaration, lineage(tree.Revision(r)))
		if got != before[r] {
			t.Errorf("rev %d: got %q, want %q", r, got, before[r])
		}
	}
	if _, ok := symbols.Divergence(symB, 1); ok {
		t.Error("empty record was kept")
	}
}

func TestErodeOriginBranch(t *testing.T) {
	modules := NewTable[atom.Module](ModuleSchema)
	meta := &entity.ModuleMetadata{Name: "Collections"}
	Write(modules, culture, ModuleMetadata, v(0, 0), meta)
	Write(modules, culture, ModuleDependencies, v(0, 1), []atom.Module{{Package: 0, Offset: 0}})

	var report Report
	modules.Revert(modules.Erode(0, 0), &report)

	if _, ok := Read(modules, culture, ModuleDependencies, tree.Lineage{v(0, 0)}); ok {
		t.Error("dependencies survived erosion")
	}
	if got, ok := Read(modules, culture, ModuleMetadata, tree.Lineage{v(0, 0)}); !ok || got != meta {
		t.Error("metadata lost")
	}
	if report.Emptied["module.dependencies"] != 1 {
		t.Errorf("Emptied = %v", report.Emptied)
	}

	Write(modules, culture, ModuleDependencies, v(0, 1), nil)
	got, ok := Read(modules, culture, ModuleDependencies, tree.Lineage{v(0, 1)})
	if !ok || got != nil {
		t.Errorf("rewrite after erosion = %v, %v", got, ok)
	}
}

func TestBaselessTableWritesOverrides(t *testing.T) {
	table := NewBaselessTable[atom.Symbol](SymbolSchema)
	Write(table, symA, SymbolDeclaration, v(0, 0), "x")
	if _, ok := table.Origin(symA); ok {
		t.Error("baseless table recorded an origin")
	}
	if table.Diverged(0) != 1 {
		t.Error("write on branch 0 was not an override")
	}
	if got, _ := Read(table, symA, SymbolDeclaration, tree.Lineage{v(1, 0), v(0, 0)}); got != "x" {
		t.Errorf("fork read = %q", got)
	}
}

func TestHistory(t *testing.T) {
	symbols := NewTable[atom.Symbol](SymbolSchema)
	Write(symbols, symA, SymbolDeclaration, v(0, 0), "a")
	Write(symbols, symA, SymbolDeclaration, v(0, 2), "b")

	var revs []tree.Revision
	for r := range History(symbols, symA, SymbolDeclaration, 0) {
		revs = append(revs, r)
	}
	if !slices.Equal(revs, []tree.Revision{0, 2}) {
		t.Errorf("History = %v", revs)
	}
	for range History(symbols, symA, SymbolDeclaration, 4) {
		t.Error("unwritten branch has history")
	}
}

// model is the reference for the randomized test: the writes of each branch
// in revision order.
type model struct {
	writes map[tree.Branch]map[atom.Symbol][]modelEntry
}

type modelEntry struct {
	rev   tree.Revision
	value string
}

func (m *model) write(k atom.Symbol, at tree.Version, value string) {
	entries := m.writes[at.Branch][k]
	if n := len(entries); n > 0 && entries[n-1].rev == at.Revision {
		entries[n-1].value = value
	} else {
		entries = append(entries, modelEntry{at.Revision, value})
	}
	m.writes[at.Branch][k] = entries
}

func (m *model) erode(b tree.Branch, until tree.Revision) {
	for k, entries := range m.writes[b] {
		i := len(entries)
		for i > 0 && entries[i-1].rev > until {
			i--
		}
		m.writes[b][k] = entries[:i]
	}
}

func (m *model) read(k atom.Symbol, lineage tree.Lineage) (string, bool) {
	for _, at := range lineage {
		entries := m.writes[at.Branch][k]
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].rev <= at.Revision {
				return entries[i].value, true
			}
		}
	}
	return "", false
}

// TestThreeWritersWithErosion drives three branches of a table through 1024
// random writes and rollbacks and compares every read against the model.
func TestThreeWritersWithErosion(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	symbols := NewTable[atom.Symbol](SymbolSchema)
	m := &model{writes: map[tree.Branch]map[atom.Symbol][]modelEntry{0: {}, 1: {}, 2: {}}}
	keys := []atom.Symbol{symA, symB, symC}

	// Branch 1 forks from 0:4 and branch 2 from 1:2.
	forks := map[tree.Branch]tree.Version{1: v(0, 4), 2: v(1, 2)}
	heads := map[tree.Branch]tree.Revision{0: 4, 1: 2, 2: 0}
	floor := map[tree.Branch]tree.Revision{0: 4, 1: 2, 2: 0}
	lineage := func(b tree.Branch, r tree.Revision) tree.Lineage {
		l := tree.Lineage{v(b, r)}
		for f, ok := forks[b]; ok; f, ok = forks[f.Branch] {
			l = append(l, f)
		}
		return l
	}
	write := func(k atom.Symbol, at tree.Version) {
		value := fmt.Sprintf("%v@%s#%d", k, at, rng.IntN(1000))
		Write(symbols, k, SymbolDeclaration, at, value)
		m.write(k, at, value)
	}

	for b, head := range heads {
		for r := tree.Revision(0); r <= head; r++ {
			write(keys[rng.IntN(len(keys))], v(b, r))
		}
	}

	for step := 0; step < 1024; step++ {
		b := tree.Branch(rng.IntN(3))
		if rng.IntN(8) == 0 && heads[b] > floor[b] {
			until := floor[b] + tree.Revision(rng.IntN(int(heads[b]-floor[b])+1))
			symbols.Revert(symbols.Erode(b, until), nil)
			m.erode(b, until)
			heads[b] = until
		} else {
			heads[b]++
			write(keys[rng.IntN(len(keys))], v(b, heads[b]))
		}

		for rb := tree.Branch(0); rb < 3; rb++ {
			for r := tree.Revision(0); r <= heads[rb]; r++ {
				l := lineage(rb, r)
				for _, k := range keys {
					got, gotOK := Read(symbols, k, SymbolDeclaration, l)
					want, wantOK := m.read(k, l)
					if got != want || gotOK != wantOK {
						t.Fatalf("step %d: read %v as of %v = %q, %v; want %q, %v", step, k, l, got, gotOK, want, wantOK)
					}
				}
			}
			for _, k := range keys {
				if d, ok := symbols.Divergence(k, rb); ok && d.IsEmpty() {
					t.Fatalf("step %d: empty override record for %v on branch %d", step, k, rb)
				}
			}
		}
	}
}
