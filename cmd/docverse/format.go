package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"docverse/internal/export"
	"docverse/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *LoadResponseCLI:
		return formatLoadHuman(v), nil
	case *SymbolResponseCLI:
		return formatSymbolHuman(v), nil
	case *AddressResponseCLI:
		return v.Address + "\n", nil
	case *ContextResponseCLI:
		return formatContextHuman(v), nil
	case *HistoryResponseCLI:
		return formatHistoryHuman(v), nil
	case *RollbackResponseCLI:
		return formatRollbackHuman(v), nil
	case *export.Summary:
		return formatExportHuman(v), nil
	case version.BuildInfo:
		return fmt.Sprintf("docverse %s\ncommit: %s\nbuilt:  %s\ngo:     %s\n",
			v.Version, v.Commit, v.BuildDate, v.GoVersion), nil
	default:
		return formatJSON(resp)
	}
}

// printResponse writes resp to stdout in the format chosen by --format.
func printResponse(resp interface{}) error {
	out, err := FormatResponse(resp, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	return nil
}

func formatLoadHuman(r *LoadResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manifest %s: %d packages\n", r.Manifest, len(r.Packages))
	for _, p := range r.Packages {
		fmt.Fprintf(&b, "  %-24s %-8s %d graphs\n", p.Package, p.Version, p.Graphs)
	}
	return b.String()
}

func formatSymbolHuman(r *SymbolResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.Kind, strings.Join(r.Path, "."))
	fmt.Fprintf(&b, "  id:      %s\n", r.ID)
	fmt.Fprintf(&b, "  module:  %s (%s @ %s)\n", r.Module, r.Package, r.Version)
	if r.Address != "" {
		fmt.Fprintf(&b, "  address: %s\n", r.Address)
	}
	if r.Declaration != "" {
		fmt.Fprintf(&b, "  decl:    %s\n", r.Declaration)
	}
	if r.Extends != "" {
		fmt.Fprintf(&b, "  extends: %s\n", r.Extends)
	}
	if r.Card != "" || r.Body != "" {
		b.WriteString("\n")
		if r.InheritedFrom != "" {
			fmt.Fprintf(&b, "  (documentation inherited from %s)\n", r.InheritedFrom)
		}
		if r.Card != "" {
			fmt.Fprintf(&b, "  %s\n", r.Card)
		}
		if r.Body != "" {
			for _, line := range strings.Split(r.Body, "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}
	if len(r.Members) > 0 {
		fmt.Fprintf(&b, "\nMembers (%d):\n", len(r.Members))
		for _, m := range r.Members {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}
	for _, o := range r.Overlays {
		fmt.Fprintf(&b, "\nFrom %s (%s):\n", o.Culture, o.Package)
		for _, c := range o.Conformances {
			fmt.Fprintf(&b, "  conforms to %s\n", c)
		}
		for _, f := range o.Features {
			fmt.Fprintf(&b, "  feature %s\n", f)
		}
		if len(o.Constraints) > 0 {
			fmt.Fprintf(&b, "  where %s\n", strings.Join(o.Constraints, ", "))
		}
	}
	return b.String()
}

func formatPin(p PinCLI) string {
	s := fmt.Sprintf("%-24s %-8s %s", p.Package, p.Version, p.Date.Format("2006-01-02"))
	if p.Branch != "" {
		s += " (" + p.Branch + ")"
	}
	return s
}

func formatContextHuman(r *ContextResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", formatPin(r.Local))
	if len(r.Upstream) > 0 {
		b.WriteString("\nUpstream:\n")
		for _, p := range r.Upstream {
			fmt.Fprintf(&b, "  %s\n", formatPin(p))
		}
	}
	if len(r.Downstream) > 0 {
		b.WriteString("\nDownstream:\n")
		for _, p := range r.Downstream {
			fmt.Fprintf(&b, "  %s\n", formatPin(p))
		}
	}
	return b.String()
}

func formatHistoryHuman(r *HistoryResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s/%s\n", r.ID, r.Package, r.Branch)
	if len(r.Changes) == 0 {
		b.WriteString("  no changes on this branch\n")
	}
	for _, c := range r.Changes {
		if c.Removed {
			fmt.Fprintf(&b, "  r%-4d %s  removed\n", c.Revision, c.Date.Format("2006-01-02"))
			continue
		}
		fmt.Fprintf(&b, "  r%-4d %s  %s\n", c.Revision, c.Date.Format("2006-01-02"), strings.Join(c.Fields, ", "))
	}
	return b.String()
}

func formatRollbackHuman(r *RollbackResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rolled %s/%s back to r%d", r.Package, r.Branch, r.Until)
	if r.Head != "" {
		fmt.Fprintf(&b, " (head %s)", r.Head)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  removed entries: %d\n", r.Report.Removed)
	for _, key := range slices.Sorted(maps.Keys(r.Report.Truncated)) {
		fmt.Fprintf(&b, "  truncated %-32s %d\n", key, r.Report.Truncated[key])
	}
	for _, key := range slices.Sorted(maps.Keys(r.Report.Emptied)) {
		fmt.Fprintf(&b, "  emptied   %-32s %d\n", key, r.Report.Emptied[key])
	}
	return b.String()
}

func formatExportHuman(s *export.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exported %s @ %s to %s\n", s.Package, s.Version, s.Path)
	fmt.Fprintf(&b, "  modules:  %d\n", s.Modules)
	fmt.Fprintf(&b, "  symbols:  %d\n", s.Symbols)
	fmt.Fprintf(&b, "  members:  %d\n", s.Members)
	fmt.Fprintf(&b, "  overlays: %d\n", s.Overlays)
	fmt.Fprintf(&b, "  articles: %d\n", s.Articles)
	return b.String()
}
