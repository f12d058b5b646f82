// Package manifest reads the files that describe a documentation universe:
// docverse.toml, listing the packages and how they pin each other, and the
// PACKAGE.toml declaration inside each package directory, listing its symbol
// graphs.
package manifest

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"docverse/internal/errors"
	"docverse/internal/tree"
)

// FileName is the default manifest file name.
const FileName = "docverse.toml"

// Manifest is the universe manifest stored in docverse.toml.
type Manifest struct {
	// Name is a human-readable label for the universe
	Name string `toml:"name"`

	// UpdatedAt is when the manifest was last saved
	UpdatedAt time.Time `toml:"updated_at"`

	// Packages lists every package in ingestion-independent order
	Packages []PackageConfig `toml:"packages"`

	// dir is the directory package paths are relative to
	dir string
}

// PackageConfig is one package entry of the manifest.
type PackageConfig struct {
	// UID is an immutable identifier that survives renames
	UID string `toml:"uid"`

	// Name is the package name queries and pins use
	Name string `toml:"name"`

	// Path is the package directory, relative to the manifest
	Path string `toml:"path"`

	// Branch is the branch new revisions are committed to; empty means the
	// default branch
	Branch string `toml:"branch,omitempty"`

	// Pins maps dependency package names to version selectors
	Pins map[string]string `toml:"pins,omitempty"`
}

// New creates an empty manifest rooted at dir.
func New(name, dir string) *Manifest {
	return &Manifest{Name: name, dir: dir, Packages: []PackageConfig{}}
}

// Load reads and validates a manifest. Packages without a UID get one.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, errors.NewStoreError(errors.InvalidManifest, fmt.Sprintf("cannot parse %s", path), err)
	}
	m.dir = filepath.Dir(path)
	for i := range m.Packages {
		if m.Packages[i].UID == "" {
			m.Packages[i].UID = uuid.New().String()
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	m.UpdatedAt = time.Now().UTC()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// Dir returns the directory package paths are resolved against.
func (m *Manifest) Dir() string { return m.dir }

// AddPackage appends a package entry with a fresh UID.
func (m *Manifest) AddPackage(name, path string, pins map[string]string) (*PackageConfig, error) {
	for _, p := range m.Packages {
		if strings.EqualFold(p.Name, name) {
			return nil, errors.Errorf(errors.InvalidManifest, "package %q already exists", name)
		}
	}
	m.Packages = append(m.Packages, PackageConfig{
		UID:  uuid.New().String(),
		Name: name,
		Path: path,
		Pins: pins,
	})
	return &m.Packages[len(m.Packages)-1], nil
}

// Package returns the entry called name.
func (m *Manifest) Package(name string) *PackageConfig {
	for i := range m.Packages {
		if strings.EqualFold(m.Packages[i].Name, name) {
			return &m.Packages[i]
		}
	}
	return nil
}

// PackageDir returns the absolute or manifest-relative directory of p.
func (m *Manifest) PackageDir(p *PackageConfig) string {
	if filepath.IsAbs(p.Path) {
		return p.Path
	}
	return filepath.Join(m.dir, p.Path)
}

// Validate checks names, paths and pin selectors. Pins may name packages
// outside the manifest; those must already be registered when ingesting.
func (m *Manifest) Validate() error {
	names := make(map[string]struct{}, len(m.Packages))
	uids := make(map[string]struct{}, len(m.Packages))
	for _, p := range m.Packages {
		if strings.TrimSpace(p.Name) == "" {
			return errors.Errorf(errors.InvalidManifest, "package at %q has no name", p.Path)
		}
		if p.Path == "" {
			return errors.Errorf(errors.InvalidManifest, "package %q has no path", p.Name)
		}
		key := strings.ToLower(p.Name)
		if _, dup := names[key]; dup {
			return errors.Errorf(errors.InvalidManifest, "package %q is listed twice", p.Name)
		}
		names[key] = struct{}{}
		if _, dup := uids[p.UID]; dup {
			return errors.Errorf(errors.InvalidManifest, "uid %q is shared by two packages", p.UID)
		}
		uids[p.UID] = struct{}{}

		for dep, sel := range p.Pins {
			if strings.EqualFold(dep, p.Name) {
				return errors.Errorf(errors.DependencyCycle, "package %q pins itself", p.Name)
			}
			if _, err := tree.ParseSelector(sel); err != nil {
				return errors.NewStoreError(errors.InvalidManifest,
					fmt.Sprintf("package %q pins %q", p.Name, dep), err)
			}
		}
	}
	return nil
}

// Order returns the packages sorted so that each follows the packages of
// the manifest it pins.
func (m *Manifest) Order() ([]*PackageConfig, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(m.Packages))
	ordered := make([]*PackageConfig, 0, len(m.Packages))

	var visit func(p *PackageConfig, stack []string) error
	visit = func(p *PackageConfig, stack []string) error {
		key := strings.ToLower(p.Name)
		switch state[key] {
		case visiting:
			cycle := append(slices.Clone(stack[slices.Index(stack, p.Name):]), p.Name)
			return errors.Errorf(errors.DependencyCycle, "package dependency cycle: %s", strings.Join(cycle, " -> ")).
				WithDetails(cycle)
		case done:
			return nil
		}
		state[key] = visiting
		for _, dep := range slices.Sorted(maps.Keys(p.Pins)) {
			if d := m.Package(dep); d != nil {
				if err := visit(d, append(stack, p.Name)); err != nil {
					return err
				}
			}
		}
		state[key] = done
		ordered = append(ordered, p)
		return nil
	}
	for i := range m.Packages {
		if err := visit(&m.Packages[i], nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
