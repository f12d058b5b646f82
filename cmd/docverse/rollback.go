package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"docverse/internal/divergence"
	"docverse/internal/errors"
	"docverse/internal/tree"
)

var rollbackBranch string

// RollbackResponseCLI reports what rolling a branch back dropped.
type RollbackResponseCLI struct {
	Package string            `json:"package"`
	Branch  string            `json:"branch"`
	Until   tree.Revision     `json:"until"`
	Head    string            `json:"head,omitempty"`
	Report  divergence.Report `json:"report"`
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <package> <revision>",
	Short: "Roll a branch back to a revision",
	Long: `Loads the manifest, then drops every revision of the branch after the
given one and reports how many field entries were truncated or emptied.
A branch cannot be rolled back past a revision another branch was forked
from.`,
	Args: cobra.ExactArgs(2),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackBranch, "branch", "", "Branch (default: the default branch)")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	rev, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return errors.Errorf(errors.InvalidSelector, "invalid revision %q", args[1])
	}
	w, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	id, ok := w.universe.Lookup(args[0])
	if !ok {
		return errors.Errorf(errors.UnknownPackage, "unknown package %q", args[0])
	}

	report, err := w.universe.Erode(id, rollbackBranch, tree.Revision(rev))
	if err != nil {
		return err
	}
	v, _ := w.universe.Volume(id)
	resp := &RollbackResponseCLI{Package: v.Name(), Until: tree.Revision(rev), Report: report}
	b := tree.Branch(0)
	if rollbackBranch != "" {
		b, _ = v.Branch(rollbackBranch)
	}
	resp.Branch = v.Branches()[b].Name
	if head, ok := v.Head(b); ok {
		resp.Head = head.String()
	}
	w.logger.Info("Rolled back branch", "package", v.Name(), "branch", resp.Branch, "until", rev, "removed", report.Removed)
	return printResponse(resp)
}
