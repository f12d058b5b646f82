package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"docverse/internal/errors"
	"docverse/internal/graph"
)

// DeclarationFile is the per-package declaration file name.
const DeclarationFile = "PACKAGE.toml"

// Declaration lists the symbol graphs of one package.
type Declaration struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Graphs are the symbol graph files, relative to the package directory
	Graphs []GraphDeclaration `toml:"graph"`
}

// GraphDeclaration is one symbol graph file.
type GraphDeclaration struct {
	// Path is the file, ending in .yaml, .yml, .scip or .scip.zst
	Path string `toml:"path"`

	// Culture names the module a SCIP index describes. YAML documents carry
	// their own culture. Defaults to the file name without extensions.
	Culture string `toml:"culture,omitempty"`
}

// graphSuffixes are matched in order, so the compressed form comes first.
var graphSuffixes = []string{".scip.zst", ".scip", ".yaml", ".yml"}

// ParseDeclaration parses a PACKAGE.toml file.
func ParseDeclaration(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DeclarationFile, err)
	}
	var d Declaration
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, errors.NewStoreError(errors.InvalidManifest, fmt.Sprintf("cannot parse %s", path), err)
	}
	if d.Version < 1 {
		d.Version = 1
	}
	for _, g := range d.Graphs {
		if g.Path == "" {
			return nil, errors.Errorf(errors.InvalidManifest, "%s: graph declaration missing required 'path' field", path)
		}
	}
	return &d, nil
}

// WriteDeclaration writes d to path.
func WriteDeclaration(path string, d *Declaration) error {
	data, err := toml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", DeclarationFile, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDeclaration reads dir/PACKAGE.toml. Without one, every symbol graph
// file directly inside dir is declared, in name order.
func LoadDeclaration(dir string) (*Declaration, error) {
	path := filepath.Join(dir, DeclarationFile)
	if _, err := os.Stat(path); err == nil {
		return ParseDeclaration(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list package directory: %w", err)
	}
	d := &Declaration{Version: 1}
	for _, e := range entries {
		if e.IsDir() || stem(e.Name()) == "" {
			continue
		}
		d.Graphs = append(d.Graphs, GraphDeclaration{Path: e.Name()})
	}
	slices.SortFunc(d.Graphs, func(a, b GraphDeclaration) int { return strings.Compare(a.Path, b.Path) })
	return d, nil
}

// Read decodes every declared graph.
func (d *Declaration) Read(dir string) ([]*graph.Graph, error) {
	var graphs []*graph.Graph
	for _, decl := range d.Graphs {
		culture := decl.Culture
		if culture == "" {
			culture = stem(filepath.Base(decl.Path))
		}
		gs, err := graph.ReadFile(filepath.Join(dir, decl.Path), culture)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, gs...)
	}
	return graphs, nil
}

// stem strips a symbol graph suffix, returning "" for other files.
func stem(name string) string {
	for _, suffix := range graphSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok {
			return base
		}
	}
	return ""
}
