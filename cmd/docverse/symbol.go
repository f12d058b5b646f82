package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docverse/internal/atom"
	"docverse/internal/entity"
	"docverse/internal/pinned"
)

var (
	symbolAt            string
	symbolBidirectional bool
	addressDisambiguate string
)

// SymbolResponseCLI describes one symbol as seen from a pinned package.
type SymbolResponseCLI struct {
	Package       string                `json:"package"`
	Version       string                `json:"version"`
	ID            string                `json:"id"`
	Module        string                `json:"module"`
	Kind          entity.Kind           `json:"kind"`
	Path          []string              `json:"path"`
	Language      string                `json:"language,omitempty"`
	Availability  []entity.Availability `json:"availability,omitempty"`
	Declaration   string                `json:"declaration,omitempty"`
	Card          string                `json:"card,omitempty"`
	Body          string                `json:"body,omitempty"`
	InheritedFrom string                `json:"inheritedFrom,omitempty"`
	Extends       string                `json:"extends,omitempty"`
	Address       string                `json:"address,omitempty"`
	Members       []string              `json:"members,omitempty"`
	Overlays      []OverlayCLI          `json:"overlays,omitempty"`
}

// OverlayCLI is what one module contributes to a symbol it does not own.
type OverlayCLI struct {
	Package      string   `json:"package"`
	Culture      string   `json:"culture"`
	Conformances []string `json:"conformances,omitempty"`
	Features     []string `json:"features,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`
}

// AddressResponseCLI is the documentation address of one symbol.
type AddressResponseCLI struct {
	ID      string         `json:"id"`
	Address string         `json:"address"`
	Parts   pinned.Address `json:"parts"`
}

var findCmd = &cobra.Command{
	Use:   "find <package> <symbol-id>",
	Short: "Show a symbol as seen from a package",
	Long: `Looks the stable identifier up in the package and then in the
packages it pins, and prints the symbol with its documentation, members and
the conformances and features other modules add to it.

Examples:
  docverse find swift-collections "scip-swift swift Collections 1.0 Deque#"
  docverse find swift-collections "scip-swift swift Swift 5.9 Sequence#" --at main:2025-06-01`,
	Args: cobra.ExactArgs(2),
	RunE: runFind,
}

var docCmd = &cobra.Command{
	Use:   "doc <package> <symbol-id>",
	Short: "Show a symbol's documentation",
	Long: `Prints the documentation of a symbol. A symbol without its own
documentation inherits the documentation of the symbol it extends, possibly
from another package.`,
	Args: cobra.ExactArgs(2),
	RunE: runDoc,
}

var addressCmd = &cobra.Command{
	Use:   "address <package> <symbol-id>",
	Short: "Print a symbol's documentation address",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddress,
}

func init() {
	for _, cmd := range []*cobra.Command{findCmd, docCmd, addressCmd} {
		cmd.Flags().StringVar(&symbolAt, "at", "", "Version selector: <branch>, <branch>:<revision> or <branch>:<YYYY-MM-DD>")
		cmd.Flags().BoolVar(&symbolBidirectional, "bidirectional", false, "Also search the packages that pin this one")
		rootCmd.AddCommand(cmd)
	}
	addressCmd.Flags().StringVar(&addressDisambiguate, "disambiguate", "", "Hash suffix: never, minimally or always (default: from config)")
}

func runFind(cmd *cobra.Command, args []string) error {
	w, c, s, err := resolveSymbol(cmd, args)
	if err != nil {
		return err
	}
	resp, err := describe(c, s, w.cfg.Disambiguation())
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runDoc(cmd *cobra.Command, args []string) error {
	w, c, s, err := resolveSymbol(cmd, args)
	if err != nil {
		return err
	}
	resp, err := describe(c, s, w.cfg.Disambiguation())
	if err != nil {
		return err
	}
	resp.Members = nil
	resp.Overlays = nil
	return printResponse(resp)
}

func runAddress(cmd *cobra.Command, args []string) error {
	w, c, s, err := resolveSymbol(cmd, args)
	if err != nil {
		return err
	}
	level := w.cfg.Disambiguation()
	if addressDisambiguate != "" {
		if level, err = pinned.ParseDisambiguation(addressDisambiguate); err != nil {
			return err
		}
	}
	addr, ok := c.Address(s, level)
	if !ok {
		return fmt.Errorf("symbol %q has no address", args[1])
	}
	return printResponse(&AddressResponseCLI{ID: args[1], Address: addr.String(), Parts: addr})
}

func resolveSymbol(cmd *cobra.Command, args []string) (*workspace, *pinned.Context, atom.Symbol, error) {
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return nil, nil, atom.Symbol{}, err
	}
	c, err := w.context(args[0], symbolAt, symbolBidirectional)
	if err != nil {
		return nil, nil, atom.Symbol{}, err
	}
	s, err := find(c, args[1])
	if err != nil {
		return nil, nil, atom.Symbol{}, err
	}
	return w, c, s, nil
}

// symbolID returns the stable identifier of s, or its atom when no pinned
// package owns it.
func symbolID(c *pinned.Context, s atom.Symbol) string {
	if p, ok := c.Package(s.Nationality()); ok {
		return p.Volume().SymbolID(s)
	}
	return s.String()
}

func moduleName(c *pinned.Context, m atom.Module) string {
	if p, ok := c.Package(m.Package); ok {
		return p.Volume().ModuleID(m)
	}
	return m.String()
}

func describe(c *pinned.Context, s atom.Symbol, level pinned.Disambiguation) (*SymbolResponseCLI, error) {
	owner, ok := c.Package(s.Nationality())
	if !ok {
		return nil, fmt.Errorf("symbol %s belongs to no pinned package", s)
	}
	view, ok := c.Symbol(s)
	if !ok {
		return nil, fmt.Errorf("symbol %s is not live in %s", symbolID(c, s), owner.Name())
	}

	resp := &SymbolResponseCLI{
		Package:      owner.Name(),
		Version:      owner.Version().String(),
		ID:           view.ID,
		Module:       moduleName(c, s.Culture),
		Kind:         view.Intrinsic.Kind,
		Path:         view.Intrinsic.Path,
		Language:     view.Intrinsic.Language,
		Availability: view.Intrinsic.Availability,
		Declaration:  view.Declaration,
	}
	if doc, ok := c.Documentation(s); ok {
		resp.Card, resp.Body = doc.Card, doc.Body
		if view.Documentation.IsEmpty() && view.Extends != nil {
			resp.InheritedFrom = symbolID(c, *view.Extends)
		}
	}
	if view.Extends != nil {
		resp.Extends = symbolID(c, *view.Extends)
	}
	if addr, ok := c.Address(s, level); ok {
		resp.Address = addr.String()
	}
	for _, m := range view.Members {
		resp.Members = append(resp.Members, symbolID(c, m))
	}
	for _, o := range c.Overlays(s) {
		overlay := OverlayCLI{
			Culture:     moduleName(c, o.Diacritic.Culture),
			Constraints: o.Constraints,
		}
		if p, ok := c.Package(o.Diacritic.Culture.Package); ok {
			overlay.Package = p.Name()
		}
		for _, t := range o.Conformances {
			overlay.Conformances = append(overlay.Conformances, symbolID(c, t))
		}
		for _, f := range o.Features {
			overlay.Features = append(overlay.Features, symbolID(c, f))
		}
		resp.Overlays = append(resp.Overlays, overlay)
	}
	return resp, nil
}
