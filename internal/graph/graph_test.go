package graph

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"docverse/internal/entity"
	"docverse/internal/errors"
)

const (
	dequeID = "scip-swift swift Collections 1.0 Deque#"
	countID = "scip-swift swift Collections 1.0 Deque#count."
	seqID   = "scip-swift swift Swift 5.9 Sequence#"
)

const dequeGraph = `
culture: Collections
language: swift
dependencies: [Swift]
symbols:
  - id: "scip-swift swift Collections 1.0 Deque#"
    kind: struct
    declaration: "struct Deque<Element>"
    doc: |
      A double-ended queue.

      Supports amortized O(1) insertion at both ends.
    relationships:
      - kind: conformance
        target: "scip-swift swift Swift 5.9 Sequence#"
    availability:
      - domain: macOS
        introduced: "13.0"
  - id: "scip-swift swift Collections 1.0 Deque#count."
    kind: property
    relationships:
      - kind: member
        target: "scip-swift swift Collections 1.0 Deque#"
articles:
  - id: getting-started
    name: Getting Started
    headline: Using deques
`

func TestDecode(t *testing.T) {
	g, err := Decode(strings.NewReader(dequeGraph))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := Validate(g); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if g.Culture != "Collections" || len(g.Symbols) != 2 || len(g.Articles) != 1 {
		t.Fatalf("unexpected graph: %+v", g)
	}
	if !slices.Equal(g.Symbols[1].Path, []string{"Deque", "count"}) {
		t.Errorf("derived path = %v", g.Symbols[1].Path)
	}
	if g.Symbols[0].Kind != entity.KindStruct {
		t.Errorf("kind = %q", g.Symbols[0].Kind)
	}
	if ext := entity.ParseExtension(g.Symbols[0].Doc); ext.Card != "A double-ended queue." {
		t.Errorf("card = %q", ext.Card)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("culture: A\nflavour: vanilla\n"))
	if !errors.HasCode(err, errors.InvalidGraph) {
		t.Errorf("err = %v, want INVALID_GRAPH", err)
	}
}

func TestValidate(t *testing.T) {
	sym := func(id string) Symbol { return Symbol{ID: id, Kind: entity.KindStruct} }
	tests := []struct {
		name string
		g    Graph
		want errors.ErrorCode
	}{
		{"no culture", Graph{}, errors.InvalidGraph},
		{"imports itself", Graph{Culture: "A", Dependencies: []string{"A"}}, errors.ModuleCycle},
		{"empty id", Graph{Culture: "A", Symbols: []Symbol{sym("")}}, errors.InvalidSymbolID},
		{"local id", Graph{Culture: "A", Symbols: []Symbol{sym("local 4")}}, errors.InvalidSymbolID},
		{"malformed id", Graph{Culture: "A", Symbols: []Symbol{sym("not-a-symbol")}}, errors.InvalidSymbolID},
		{"duplicate symbol", Graph{Culture: "A", Symbols: []Symbol{sym(dequeID), sym(dequeID)}}, errors.DuplicateSymbol},
		{
			"duplicate availability",
			Graph{Culture: "A", Symbols: []Symbol{{
				ID:           dequeID,
				Availability: []entity.Availability{{Domain: "iOS"}, {Domain: "iOS", Deprecated: "17"}},
			}}},
			errors.DuplicateAvailability,
		},
		{
			"unknown relationship",
			Graph{Culture: "A", Symbols: []Symbol{{
				ID:            countID,
				Relationships: []Relationship{{Kind: "overrides", Target: dequeID}},
			}}},
			errors.InvalidGraph,
		},
		{
			"bad relationship target",
			Graph{Culture: "A", Symbols: []Symbol{{
				ID:            countID,
				Relationships: []Relationship{{Kind: Member, Target: "local 1"}},
			}}},
			errors.InvalidSymbolID,
		},
		{
			"duplicate article",
			Graph{Culture: "A", Articles: []Article{{ID: "x"}, {ID: "x"}}},
			errors.InvalidGraph,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.g)
			if !errors.HasCode(err, tt.want) {
				t.Errorf("Validate = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	a := &Graph{Culture: "A", Dependencies: []string{"B", "Swift"}}
	b := &Graph{Culture: "B"}
	c := &Graph{Culture: "C", Dependencies: []string{"A"}}

	if err := ValidateBatch([]*Graph{c, a, b}); err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	var order []string
	for _, g := range Order([]*Graph{c, a, b}) {
		order = append(order, g.Culture)
	}
	if !slices.Equal(order, []string{"B", "A", "C"}) {
		t.Errorf("Order = %v", order)
	}

	if err := ValidateBatch([]*Graph{a, b, {Culture: "A"}}); !errors.HasCode(err, errors.DuplicateCulture) {
		t.Errorf("duplicate culture: %v", err)
	}

	deque := Symbol{ID: dequeID, Kind: entity.KindStruct}
	owned := &Graph{Culture: "A", Symbols: []Symbol{deque}}
	moved := &Graph{Culture: "B", Symbols: []Symbol{deque}}
	err := ValidateBatch([]*Graph{owned, moved})
	if !errors.HasCode(err, errors.DuplicateSymbol) {
		t.Errorf("symbol declared by two modules: %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), `"A" and "B"`) {
		t.Errorf("duplicate symbol message = %q", err.Error())
	}

	cyclic := &Graph{Culture: "B", Dependencies: []string{"C"}}
	err = ValidateBatch([]*Graph{a, cyclic, c})
	if !errors.HasCode(err, errors.ModuleCycle) {
		t.Fatalf("cycle: %v", err)
	}
	if !strings.Contains(err.Error(), "A -> B -> C -> A") {
		t.Errorf("cycle message = %q", err.Error())
	}
}

func TestDigestIgnoresBatchOrder(t *testing.T) {
	a := &Graph{Culture: "A", Symbols: []Symbol{{ID: dequeID, Doc: "one"}}}
	b := &Graph{Culture: "B"}

	d1, err := Digest([]*Graph{a, b})
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := Digest([]*Graph{b, a})
	if d1 != d2 {
		t.Error("digest depends on batch order")
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d", len(d1))
	}

	changed := &Graph{Culture: "A", Symbols: []Symbol{{ID: dequeID, Doc: "two"}}}
	d3, _ := Digest([]*Graph{changed, b})
	if d3 == d1 {
		t.Error("digest ignores documentation changes")
	}
}

func testIndex() *scip.Index {
	return &scip.Index{
		Documents: []*scip.Document{{
			Language:     "Swift",
			RelativePath: "Sources/Deque.swift",
			Symbols: []*scip.SymbolInformation{
				{
					Symbol:                 dequeID,
					Documentation:          []string{"A double-ended queue."},
					SignatureDocumentation: &scip.Document{Text: "struct Deque<Element>"},
					Relationships:          []*scip.Relationship{{Symbol: seqID, IsImplementation: true}},
				},
				{
					Symbol:          countID,
					EnclosingSymbol: dequeID,
				},
				{Symbol: "local 0"},
			},
		}},
		ExternalSymbols: []*scip.SymbolInformation{{Symbol: seqID}},
	}
}

func TestFromIndex(t *testing.T) {
	g, err := FromIndex(testIndex(), "Collections")
	if err != nil {
		t.Fatalf("FromIndex: %v", err)
	}
	if err := Validate(g); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if g.Language != "swift" {
		t.Errorf("language = %q", g.Language)
	}
	if !slices.Equal(g.Dependencies, []string{"Swift"}) {
		t.Errorf("dependencies = %v", g.Dependencies)
	}
	if len(g.Symbols) != 2 {
		t.Fatalf("symbols = %d, want 2 (local skipped)", len(g.Symbols))
	}
	deque, count := g.Symbols[0], g.Symbols[1]
	if deque.Kind != entity.KindStruct || deque.Declaration != "struct Deque<Element>" {
		t.Errorf("deque = %+v", deque)
	}
	if len(deque.Relationships) != 1 || deque.Relationships[0].Kind != Conformance {
		t.Errorf("deque relationships = %+v", deque.Relationships)
	}
	if count.Kind != entity.KindProperty {
		t.Errorf("count kind = %q", count.Kind)
	}
	if len(count.Relationships) != 1 || count.Relationships[0].Kind != Member || count.Relationships[0].Target != dequeID {
		t.Errorf("count relationships = %+v", count.Relationships)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	data, err := proto.Marshal(testIndex())
	if err != nil {
		t.Fatal(err)
	}

	yamlPath := filepath.Join(dir, "Collections.yaml")
	scipPath := filepath.Join(dir, "index.scip")
	zstPath := filepath.Join(dir, "index.scip.zst")
	if err := os.WriteFile(yamlPath, []byte(dequeGraph), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(scipPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(zstPath, enc.EncodeAll(data, nil), 0o644); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	for _, path := range []string{yamlPath, scipPath, zstPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			graphs, err := ReadFile(path, "Collections")
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(graphs) != 1 || graphs[0].Culture != "Collections" || len(graphs[0].Symbols) != 2 {
				t.Errorf("unexpected graphs: %+v", graphs)
			}
		})
	}

	if _, err := ReadFile(filepath.Join(dir, "notes.txt"), "X"); err == nil {
		t.Error("expected error for missing file")
	}
	txt := filepath.Join(dir, "graph.txt")
	os.WriteFile(txt, nil, 0o644)
	if _, err := ReadFile(txt, "X"); !errors.HasCode(err, errors.InvalidGraph) {
		t.Errorf("unknown extension: %v", err)
	}
}
