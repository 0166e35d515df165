package main

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/keyserver"
	"github.com/raphi011/gitks/internal/log"
	"github.com/raphi011/gitks/internal/output"
)

func newWorktreesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "worktrees [path]",
		Short:   "List keyserver worktrees",
		Aliases: []string{"wt"},
		GroupID: GroupInspect,
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		Long: `List the worktrees of the keys and configuration branches.

Reads "git worktree list" of the repository at path (default: current
directory). Use --all to include worktrees of unrelated branches.`,
		Example: `  gitks worktrees        # Keyserver worktrees of this repository
  gitks worktrees --all  # Every worktree`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			root, err := resolveRepo(args)
			if err != nil {
				return err
			}
			g := git.New(root)
			settings, err := keyserver.LoadSettings(ctx, g)
			if err != nil {
				return err
			}
			worktrees, err := g.ListWorktrees(ctx)
			if err != nil {
				return err
			}

			wanted := map[string]bool{
				git.BranchRef(keyserver.ConfBranch):                       true,
				git.BranchRef(keyserver.TestBranch(settings.KeysBranch)):  true,
				git.BranchRef(keyserver.FinalBranch(settings.KeysBranch)): true,
			}

			var rows [][]string
			for _, ref := range slices.Sorted(maps.Keys(worktrees)) {
				if !all && !wanted[ref] {
					continue
				}
				e := worktrees[ref]
				commits := "-"
				if n, err := g.CommitCount(ctx, ref); err == nil {
					commits = strconv.Itoa(n)
				} else {
					log.FromContext(ctx).Debug("commit count unavailable", "ref", ref, "error", err)
				}
				rows = append(rows, []string{
					strings.TrimPrefix(ref, "refs/heads/"),
					e.Path,
					e.Head[:min(7, len(e.Head))],
					commits,
					formatFlags(e.Flags),
				})
			}

			p := output.FromContext(ctx)
			if len(rows) == 0 {
				p.Println("No keyserver worktrees. Run 'gitks init' first.")
				return nil
			}
			p.Table([]string{"BRANCH", "PATH", "HEAD", "COMMITS", "FLAGS"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include worktrees of all branches")

	return cmd
}

// formatFlags renders worktree flags as "name" or "name=value", sorted.
func formatFlags(flags map[string]string) string {
	parts := make([]string, 0, len(flags))
	for _, k := range slices.Sorted(maps.Keys(flags)) {
		if v := flags[k]; v != "true" && v != "" {
			parts = append(parts, k+"="+v)
		} else {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ",")
}
