package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/keyserver"
	"github.com/raphi011/gitks/internal/log"
	"github.com/raphi011/gitks/internal/output"
	"github.com/raphi011/gitks/internal/ui/prompt"
)

const (
	layoutWorktree = "worktree"
	layoutBranch   = "branch"
)

// initializer provisions a keyserver in a repository.
type initializer interface {
	Init(ctx context.Context, keysBranch, keysDir string) (*keyserver.InitResult, error)
}

func newInitCmd() *cobra.Command {
	var (
		branch     string
		dir        string
		userName   string
		userEmail  string
		stagingDir string
		layout     string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:     "init [path]",
		Short:   "Set up a repository as a keyserver",
		GroupID: GroupKeyserver,
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		Long: `Set up a repository as a keyserver.

Creates <branch>/test and <branch>/final as orphan branches, each checked
out in its own worktree under a random directory inside --staging-dir,
records the keyserver in the repository's local git config and creates
the test and final key directories.

The repository is created if path is not one yet. The branch you have
checked out is never switched or modified.

With --layout branch, the key branches are forked from main or master
instead and no worktrees are created.`,
		Example: `  gitks init                          # Initialise the current repository
  gitks init ~/keys --branch ks/keys  # Custom key branch
  gitks init --layout branch --strict # Plain branches, fail without main/master`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			l := log.FromContext(ctx)
			c := loadedConfig()

			if layout != layoutWorktree && layout != layoutBranch {
				return usageError(fmt.Errorf("unknown layout %q (supported: %s, %s)", layout, layoutWorktree, layoutBranch))
			}
			if strict && layout != layoutBranch {
				return usageError(fmt.Errorf("--strict only applies to --layout %s", layoutBranch))
			}

			root, err := resolveRepo(args)
			if err != nil {
				return err
			}

			name, email := firstNonEmpty(userName, c.User.Name), firstNonEmpty(userEmail, c.User.Email)
			if name == "" && email == "" && !hasGitIdentity(ctx, root) && stdinIsTerminal() {
				res, err := prompt.Identity("", "")
				if err != nil {
					return fmt.Errorf("identity prompt: %w", err)
				}
				if res.Cancelled {
					return fmt.Errorf("init cancelled")
				}
				name, email = res.Name, res.Email
			}

			opts := keyserver.Options{
				RepoRoot:  root,
				UserName:  name,
				UserEmail: email,
				Generator: &keyserver.StagingGenerator{
					BaseDir:    firstNonEmpty(stagingDir, c.StagingDir),
					NameLength: c.StagingNameLength,
				},
			}

			var ks initializer
			if layout == layoutBranch {
				ks, err = keyserver.NewBranchServer(opts, !strict)
			} else {
				ks, err = keyserver.NewServer(opts)
			}
			if err != nil {
				return err
			}

			l.Debug("initialising", "root", root, "layout", layout)
			res, err := ks.Init(ctx, firstNonEmpty(branch, c.KeysBranch), firstNonEmpty(dir, c.KeysDir))
			if err != nil {
				return err
			}

			printInitResult(output.FromContext(ctx), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Keys base branch (default from config or "+keyserver.DefaultKeysBranch+")")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Keys directory, relative to the repository root (default from config or "+keyserver.DefaultKeysDir+")")
	cmd.Flags().StringVar(&userName, "user-name", "", "Commit author name, stored in local config")
	cmd.Flags().StringVar(&userEmail, "user-email", "", "Commit author email, stored in local config")
	cmd.Flags().StringVar(&stagingDir, "staging-dir", "", "Directory in which worktrees are staged (default from config or home)")
	cmd.Flags().StringVar(&layout, "layout", layoutWorktree, "Storage layout: worktree or branch")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of creating an initial commit when main/master is missing (branch layout)")

	cmd.RegisterFlagCompletionFunc("layout", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{layoutWorktree, layoutBranch}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func printInitResult(p *output.Printer, res *keyserver.InitResult) {
	p.Successf("Initialised gitks in %s", res.Root)

	rows := [][2]string{
		{"keys branch", res.KeysBranch},
		{"keys dir", res.KeysPath},
	}
	if res.StagingDir != "" {
		rows = append(rows,
			[2]string{"test worktree", res.TestWorktree()},
			[2]string{"final worktree", res.FinalWorktree()},
		)
	}
	if res.ConfWorktree != "" {
		rows = append(rows, [2]string{"conf worktree", res.ConfWorktree})
	}
	p.KeyValues(rows)
}

// hasGitIdentity reports whether git can find a user name and email on its
// own for the repository at root, through its local config, global or system
// config or the environment. A root that is not a repository yet is checked
// from the working directory.
func hasGitIdentity(ctx context.Context, root string) bool {
	g := git.New("")
	if git.IsGitRepository(ctx, root) {
		g = git.New(root)
	}
	res, err := g.Exec(ctx, "var", "GIT_COMMITTER_IDENT")
	return err == nil && res.ExitCode == 0 && strings.TrimSpace(string(res.Stdout)) != ""
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
