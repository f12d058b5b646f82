package graph

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/scip/bindings/go/scip"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	"docverse/internal/entity"
	"docverse/internal/errors"
)

// Decode reads one YAML symbol-graph document. Unknown keys are rejected.
func Decode(r io.Reader) (*Graph, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var g Graph
	if err := dec.Decode(&g); err != nil {
		return nil, errors.NewStoreError(errors.InvalidGraph, "cannot decode symbol graph", err)
	}
	for i := range g.Symbols {
		s := &g.Symbols[i]
		if len(s.Path) > 0 {
			continue
		}
		path, err := PathOf(s.ID)
		if err != nil {
			return nil, err
		}
		s.Path = path
	}
	return &g, nil
}

// ReadFile loads the graphs stored in path. YAML documents hold one graph;
// SCIP indexes (optionally zstd compressed) hold one graph named culture.
func ReadFile(path, culture string) ([]*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol graph: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		g, err := Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*Graph{g}, nil

	case strings.HasSuffix(name, ".scip.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: open zstd stream: %w", path, err)
		}
		defer zr.Close()
		g, err := readIndex(zr, culture)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*Graph{g}, nil

	case strings.HasSuffix(name, ".scip"):
		g, err := readIndex(f, culture)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*Graph{g}, nil
	}
	return nil, errors.Errorf(errors.InvalidGraph, "unrecognized symbol graph file %q", path)
}

func readIndex(r io.Reader, culture string) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read SCIP index: %w", err)
	}
	var index scip.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.NewStoreError(errors.InvalidGraph, "cannot parse SCIP index", err)
	}
	return FromIndex(&index, culture)
}

// FromIndex converts the symbols of a SCIP index into the graph of one
// culture. Local symbols are skipped. Enclosing symbols become member
// relationships; implementation relationships become conformances for types
// and documentation inheritance for callables.
func FromIndex(index *scip.Index, culture string) (*Graph, error) {
	g := &Graph{Culture: culture}

	var own string
	deps := make(map[string]struct{})
	for _, doc := range index.Documents {
		if g.Language == "" {
			g.Language = strings.ToLower(doc.Language)
		}
		for _, info := range doc.Symbols {
			if scip.IsLocalSymbol(info.Symbol) {
				continue
			}
			sym, err := scip.ParseSymbol(info.Symbol)
			if err != nil {
				return nil, errors.NewStoreError(errors.InvalidSymbolID,
					fmt.Sprintf("cannot decode symbol %q", info.Symbol), err)
			}
			if own == "" && sym.Package != nil {
				own = sym.Package.Name
			}
			s, err := convertSymbol(info)
			if err != nil {
				return nil, err
			}
			for _, r := range s.Relationships {
				if target, err := scip.ParseSymbol(r.Target); err == nil && target.Package != nil {
					deps[target.Package.Name] = struct{}{}
				}
			}
			g.Symbols = append(g.Symbols, s)
		}
	}
	for _, info := range index.ExternalSymbols {
		if sym, err := scip.ParseSymbol(info.Symbol); err == nil && sym.Package != nil {
			deps[sym.Package.Name] = struct{}{}
		}
	}
	delete(deps, own)
	delete(deps, culture)
	for d := range deps {
		g.Dependencies = append(g.Dependencies, d)
	}
	sort.Strings(g.Dependencies)
	return g, nil
}

func convertSymbol(info *scip.SymbolInformation) (Symbol, error) {
	path, err := PathOf(info.Symbol)
	if err != nil {
		return Symbol{}, err
	}
	s := Symbol{
		ID:   info.Symbol,
		Kind: kindOf(info),
		Path: path,
		Doc:  strings.Join(info.Documentation, "\n\n"),
	}
	if info.SignatureDocumentation != nil {
		s.Declaration = info.SignatureDocumentation.Text
	}
	if info.EnclosingSymbol != "" && !scip.IsLocalSymbol(info.EnclosingSymbol) {
		s.Relationships = append(s.Relationships, Relationship{Kind: Member, Target: info.EnclosingSymbol})
	}
	for _, rel := range info.Relationships {
		if !rel.IsImplementation || scip.IsLocalSymbol(rel.Symbol) || rel.Symbol == info.Symbol {
			continue
		}
		kind := Conformance
		if s.Kind == entity.KindMethod || s.Kind == entity.KindFunction || s.Kind == entity.KindProperty {
			kind = Extends
		}
		s.Relationships = append(s.Relationships, Relationship{Kind: kind, Target: rel.Symbol})
	}
	return s, nil
}

// kindOf maps the SCIP kind by name, falling back to the descriptor suffix.
func kindOf(info *scip.SymbolInformation) entity.Kind {
	switch info.Kind.String() {
	case "Class":
		return entity.KindClass
	case "Struct":
		return entity.KindStruct
	case "Interface", "Protocol", "Trait":
		return entity.KindInterface
	case "Enum":
		return entity.KindEnum
	case "Function":
		return entity.KindFunction
	case "Method", "StaticMethod", "AbstractMethod", "Constructor":
		return entity.KindMethod
	case "Field":
		return entity.KindField
	case "Property", "StaticProperty":
		return entity.KindProperty
	case "Constant":
		return entity.KindConstant
	case "Variable", "StaticVariable":
		return entity.KindVariable
	case "Namespace", "Module", "Package":
		return entity.KindNamespace
	case "TypeAlias":
		return entity.KindTypeAlias
	case "TypeParameter":
		return entity.KindTypeParameter
	case "Macro":
		return entity.KindMacro
	}

	sym, err := scip.ParseSymbol(info.Symbol)
	if err != nil || len(sym.Descriptors) == 0 {
		return entity.KindUnknown
	}
	switch sym.Descriptors[len(sym.Descriptors)-1].Suffix {
	case scip.Descriptor_Type:
		return entity.KindStruct
	case scip.Descriptor_Method:
		return entity.KindMethod
	case scip.Descriptor_Term:
		return entity.KindProperty
	case scip.Descriptor_Namespace:
		return entity.KindNamespace
	case scip.Descriptor_Macro:
		return entity.KindMacro
	}
	return entity.KindUnknown
}

// Digest returns a content digest of a batch of graphs that does not depend on
// the order the graphs are given in.
func Digest(graphs []*Graph) (string, error) {
	sorted := make([]*Graph, len(graphs))
	copy(sorted, graphs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Culture < sorted[j].Culture })

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	for _, g := range sorted {
		if err := enc.Encode(g); err != nil {
			return "", fmt.Errorf("encode graph %q: %w", g.Culture, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode graphs: %w", err)
	}
	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
