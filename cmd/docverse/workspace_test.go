package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docverse/internal/errors"
	"docverse/internal/pinned"
)

const swiftGraph = `culture: Swift
language: swift
symbols:
  - id: "scip-swift swift Swift 5.9 Sequence#"
    kind: interface
    doc: A type that provides sequential access.
  - id: "scip-swift swift Swift 5.9 Sequence#makeIterator()."
    kind: method
    doc: |
      Returns an iterator.

      Details.
    relationships:
      - kind: member
        target: "scip-swift swift Swift 5.9 Sequence#"
`

const collectionsGraph = `culture: Collections
language: swift
dependencies: [Swift]
symbols:
  - id: "scip-swift swift Collections 1.0 Deque#"
    kind: struct
    doc: A double-ended queue.
    relationships:
      - kind: conformance
        target: "scip-swift swift Swift 5.9 Sequence#"
  - id: "scip-swift swift Collections 1.0 Deque#makeIterator()."
    kind: method
    relationships:
      - kind: member
        target: "scip-swift swift Collections 1.0 Deque#"
      - kind: extends
        target: "scip-swift swift Swift 5.9 Sequence#makeIterator()."
`

const testManifest = `name = "test"

[[packages]]
name = "swift"
path = "swift"

[[packages]]
name = "swift-collections"
path = "collections"

[packages.pins]
swift = "main"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupWorkspace lays out a two-package manifest and points --root at it.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docverse.toml"), testManifest)
	writeFile(t, filepath.Join(dir, "swift", "Swift.yaml"), swiftGraph)
	writeFile(t, filepath.Join(dir, "collections", "Collections.yaml"), collectionsGraph)

	prevRoot, prevQuiet := rootFlag, quietFlag
	rootFlag, quietFlag = dir, true
	t.Cleanup(func() { rootFlag, quietFlag = prevRoot, prevQuiet })
	return dir
}

func TestOpenWorkspace(t *testing.T) {
	setupWorkspace(t)
	w, err := openWorkspace(context.Background())
	if err != nil {
		t.Fatalf("openWorkspace() error = %v", err)
	}
	if len(w.loaded) != 2 || w.loaded[0].Package != "swift" {
		t.Errorf("loaded = %+v", w.loaded)
	}
}

func TestOpenWorkspaceMissingManifest(t *testing.T) {
	prev := rootFlag
	rootFlag = t.TempDir()
	t.Cleanup(func() { rootFlag = prev })

	_, err := openWorkspace(context.Background())
	if !errors.HasCode(err, errors.InvalidManifest) {
		t.Errorf("openWorkspace() error = %v, want INVALID_MANIFEST", err)
	}
}

func TestDescribe(t *testing.T) {
	setupWorkspace(t)
	w, err := openWorkspace(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c, err := w.context("swift-collections", "", false)
	if err != nil {
		t.Fatal(err)
	}

	s, err := find(c, "scip-swift swift Collections 1.0 Deque#makeIterator().")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := describe(c, s, pinned.Minimally)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Card != "Returns an iterator." || resp.Body != "Details." {
		t.Errorf("documentation = %q / %q", resp.Card, resp.Body)
	}
	if resp.InheritedFrom != "scip-swift swift Swift 5.9 Sequence#makeIterator()." {
		t.Errorf("InheritedFrom = %q", resp.InheritedFrom)
	}
	if resp.Address != "/swift-collections/collections/deque/makeiterator" {
		t.Errorf("Address = %q", resp.Address)
	}

	deque, err := find(c, "scip-swift swift Collections 1.0 Deque#")
	if err != nil {
		t.Fatal(err)
	}
	resp, err = describe(c, deque, pinned.Minimally)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Members) != 1 {
		t.Errorf("Members = %v", resp.Members)
	}
	if len(resp.Overlays) != 1 || len(resp.Overlays[0].Conformances) != 1 ||
		resp.Overlays[0].Conformances[0] != "scip-swift swift Swift 5.9 Sequence#" {
		t.Errorf("Overlays = %+v", resp.Overlays)
	}

	// Upstream symbols resolve through the pins.
	if _, err := find(c, "scip-swift swift Swift 5.9 Sequence#"); err != nil {
		t.Errorf("upstream symbol not found: %v", err)
	}
	if _, err := find(c, "scip-swift swift Collections 1.0 Missing#"); err == nil {
		t.Error("expected missing symbol error")
	}
}

func TestContextResponse(t *testing.T) {
	setupWorkspace(t)
	w, err := openWorkspace(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	c, err := w.context("swift", "main:0", true)
	if err != nil {
		t.Fatal(err)
	}
	resp := contextResponse(c)
	if resp.Local.Package != "swift" || resp.Local.Branch != "main" || resp.Local.Version != "0.0" {
		t.Errorf("Local = %+v", resp.Local)
	}
	if len(resp.Upstream) != 0 {
		t.Errorf("Upstream = %+v", resp.Upstream)
	}
	if len(resp.Downstream) != 1 || resp.Downstream[0].Package != "swift-collections" {
		t.Errorf("Downstream = %+v", resp.Downstream)
	}

	w.cfg.Resolution.Consumers = []string{"swift-nio"}
	c, err = w.context("swift", "", true)
	if err != nil {
		t.Fatal(err)
	}
	if got := contextResponse(c).Downstream; len(got) != 0 {
		t.Errorf("whitelist ignored: %+v", got)
	}
}

func TestWorkspacePinErrors(t *testing.T) {
	setupWorkspace(t)
	w, err := openWorkspace(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, pkg, at string
		code          errors.ErrorCode
	}{
		{"unknown package", "swift-nio", "", errors.UnknownPackage},
		{"bad selector", "swift", "main:", errors.InvalidSelector},
		{"missing revision", "swift", "main:9", errors.InvalidPin},
		{"unknown branch", "swift", "release", errors.UnknownBranch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := w.pin(tt.pkg, tt.at)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("pin(%q, %q) error = %v, want %s", tt.pkg, tt.at, err, tt.code)
			}
		})
	}
}

func TestFormatHumanSymbol(t *testing.T) {
	out, err := FormatResponse(&SymbolResponseCLI{
		Package: "swift-collections",
		Version: "0.0",
		ID:      "scip-swift swift Collections 1.0 Deque#",
		Module:  "Collections",
		Kind:    "struct",
		Path:    []string{"Deque"},
		Card:    "A double-ended queue.",
		Overlays: []OverlayCLI{{
			Package:      "swift-collections",
			Culture:      "Collections",
			Conformances: []string{"scip-swift swift Swift 5.9 Sequence#"},
		}},
	}, FormatHuman)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"struct Deque", "A double-ended queue.", "conforms to scip-swift swift Swift 5.9 Sequence#"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
