package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docverse/internal/errors"
	"docverse/internal/tree"
)

var historyBranch string

// ChangeCLI is one revision at which a symbol changed.
type ChangeCLI struct {
	Revision tree.Revision `json:"revision"`
	Date     time.Time     `json:"date"`
	Fields   []string      `json:"fields"`
	Removed  bool          `json:"removed,omitempty"`
}

// HistoryResponseCLI lists the changes of one symbol on one branch.
type HistoryResponseCLI struct {
	Package string      `json:"package"`
	Branch  string      `json:"branch"`
	ID      string      `json:"id"`
	Changes []ChangeCLI `json:"changes"`
}

var historyCmd = &cobra.Command{
	Use:   "history <package> <symbol-id>",
	Short: "Show the revisions at which a symbol changed",
	Long: `Lists the revisions of a branch that changed the symbol and the fields
each one wrote. Changes inherited from the branch a fork was taken from are
not listed.`,
	Args: cobra.ExactArgs(2),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyBranch, "branch", "", "Branch (default: the default branch)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	id, ok := w.universe.Lookup(args[0])
	if !ok {
		return errors.Errorf(errors.UnknownPackage, "unknown package %q", args[0])
	}
	v, _ := w.universe.Volume(id)

	b := tree.Branch(0)
	if historyBranch != "" {
		if b, ok = v.Branch(historyBranch); !ok {
			return errors.Errorf(errors.UnknownBranch, "%q has no branch %q", v.Name(), historyBranch)
		}
	}
	s, ok := v.FindSymbol(args[1])
	if !ok {
		return fmt.Errorf("symbol %q was never part of %s", args[1], v.Name())
	}

	resp := &HistoryResponseCLI{
		Package: v.Name(),
		Branch:  v.Branches()[b].Name,
		ID:      args[1],
		Changes: []ChangeCLI{},
	}
	for _, c := range v.History(s, b) {
		resp.Changes = append(resp.Changes, ChangeCLI{
			Revision: c.Revision,
			Date:     v.Info(tree.Version{Branch: b, Revision: c.Revision}).Date,
			Fields:   c.Fields,
			Removed:  c.Removed,
		})
	}
	return printResponse(resp)
}
