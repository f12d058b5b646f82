package main

import (
	"time"

	"github.com/spf13/cobra"

	"docverse/internal/pinned"
)

var (
	contextAt            string
	contextBidirectional bool
)

// PinCLI is one pinned package in a context.
type PinCLI struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Branch    string    `json:"branch,omitempty"`
	Date      time.Time `json:"date"`
	Digest    string    `json:"digest,omitempty"`
	Ingestion string    `json:"ingestion,omitempty"`
}

// ContextResponseCLI lists the packages a query against Local can reach.
type ContextResponseCLI struct {
	Local      PinCLI   `json:"local"`
	Upstream   []PinCLI `json:"upstream"`
	Downstream []PinCLI `json:"downstream,omitempty"`
}

var contextCmd = &cobra.Command{
	Use:   "context <package>",
	Short: "Show the packages a package is pinned against",
	Long: `Prints the versions of the packages a package was ingested against.
With --bidirectional it also lists the consumers whose default branch pins
the package and imports one of its modules, restricted to
resolution.consumers when that list is configured.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringVar(&contextAt, "at", "", "Version selector: <branch>, <branch>:<revision> or <branch>:<YYYY-MM-DD>")
	contextCmd.Flags().BoolVar(&contextBidirectional, "bidirectional", false, "Include consumers")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	c, err := w.context(args[0], contextAt, contextBidirectional)
	if err != nil {
		return err
	}
	return printResponse(contextResponse(c))
}

func contextResponse(c *pinned.Context) *ContextResponseCLI {
	resp := &ContextResponseCLI{Local: pinCLI(c.Local()), Upstream: []PinCLI{}}
	for _, p := range c.Upstream() {
		resp.Upstream = append(resp.Upstream, pinCLI(p))
	}
	for _, p := range c.Downstream() {
		resp.Downstream = append(resp.Downstream, pinCLI(p))
	}
	return resp
}

func pinCLI(p *pinned.Package) PinCLI {
	info, _ := p.Info()
	out := PinCLI{
		Package:   p.Name(),
		Version:   p.Version().String(),
		Date:      info.Date,
		Digest:    info.Digest,
		Ingestion: info.Ingestion,
	}
	branches := p.Volume().Branches()
	if b := int(p.Version().Branch); b < len(branches) {
		out.Branch = branches[b].Name
	}
	return out
}
