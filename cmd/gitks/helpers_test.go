package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/log"
	"github.com/raphi011/gitks/internal/output"
)

// resolvePath resolves symlinks in a path.
// This is needed on macOS where /var is a symlink to /private/var.
func resolvePath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("failed to resolve path %s: %v", path, err)
	}
	return resolved
}

// setupTestRepo creates a git repo with an initial commit on main in dir/name.
func setupTestRepo(t *testing.T, dir, name string) string {
	t.Helper()

	repoPath := filepath.Join(resolvePath(t, dir), name)
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoPath, "README.md"), []byte("# "+name+"\n"), 0644); err != nil {
		t.Fatalf("failed to write README: %v", err)
	}

	cmds := [][]string{
		{"git", "init", "-b", "main"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test User"},
		{"git", "config", "commit.gpgsign", "false"},
		{"git", "add", "README.md"},
		{"git", "commit", "-m", "Initial commit"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = repoPath
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("failed to run %v: %v\n%s", args, err, out)
		}
	}
	return repoPath
}

// testContext returns a context carrying a quiet logger.
func testContext(t *testing.T) context.Context {
	t.Helper()
	return log.WithLogger(context.Background(), log.New(&bytes.Buffer{}, false, true))
}

// executeCommand runs cmd with args and returns what it printed to stdout.
func executeCommand(ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	ctx = output.WithPrinter(ctx, &out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// skipWithoutOrphanWorktrees skips tests that run the worktree layout on a
// git without "worktree add --orphan".
func skipWithoutOrphanWorktrees(t *testing.T) {
	t.Helper()
	v, err := git.InstalledVersion(context.Background())
	if err != nil {
		t.Fatalf("InstalledVersion() = %v", err)
	}
	if !v.AtLeast(git.MinOrphanWorktreeVersion) {
		t.Skipf("git %s lacks worktree add --orphan", v)
	}
}
