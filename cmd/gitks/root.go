package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/config"
	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/keyserver"
	"github.com/raphi011/gitks/internal/log"
	"github.com/raphi011/gitks/internal/output"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	timeout time.Duration

	// Loaded once in Execute
	cfg *config.Config
)

// Command group IDs for organizing help output
const (
	GroupKeyserver = "keyserver"
	GroupInspect   = "inspect"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gitks",
		Short: "Use a git repository as a keyserver",
		Long: `gitks keeps public keys in a git repository.

Keys live on orphan branches checked out as separate worktrees, so the
branch you work on is never touched. Any git remote, including the
repository that uses the keys, can serve as the keyserver.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags are parsed by now, so the logger is built here.
			logger := log.New(os.Stderr, verbose, quiet)
			cmd.SetContext(log.WithLogger(cmd.Context(), logger))

			// Skip git check for completion and help commands
			if cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return git.CheckGit()
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show external commands being executed")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abort after this long (0 waits indefinitely)")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.Version = versionString()
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddGroup(
		&cobra.Group{ID: GroupKeyserver, Title: "Keyserver Commands:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection Commands:"},
	)

	root.AddCommand(newInitCmd())
	root.AddCommand(newCloneCmd())
	root.AddCommand(newWorktreesCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	loadedCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg = &loadedCfg

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = output.WithPrinter(ctx, os.Stdout)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gitks:", err)
		code := exitCode(err)
		if code == exitUsage {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, "Run 'gitks -h' for help")
		}
		return code
	}
	return exitOK
}

// loadedConfig returns the config loaded by Execute, or the defaults when
// commands run without it (tests).
func loadedConfig() config.Config {
	if cfg == nil {
		return config.Default()
	}
	return *cfg
}

// commandContext applies --timeout to the command's context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// resolveRepo returns args[0] as an absolute path, or the working directory.
func resolveRepo(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

// usageArgs wraps a cobra argument validator so its failures map to the
// usage exit code.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func usageError(err error) error {
	return fmt.Errorf("%w: %v", keyserver.ErrUsage, err)
}
