package git

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ExtractRepoName returns the repository name of a git URL or local path:
// the last path segment without a trailing ".git". Query strings, schemes and
// scp-like "host:path" prefixes are dropped.
func ExtractRepoName(urlOrPath string) string {
	p := urlOrPath
	if ep, err := transport.NewEndpoint(urlOrPath); err == nil && ep.Path != "" {
		p = ep.Path
	}
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	name := path.Base(p)
	// "host:repo.git" has no slash, so it is not recognised as scp-like
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}

// Init runs "git init" in the repository root. Running it on an existing
// repository is a no-op at the git level.
func (g *Git) Init(ctx context.Context) error {
	if _, err := g.Run(ctx, "init"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// SetConfig writes a local config value.
func (g *Git) SetConfig(ctx context.Context, key, value string) error {
	if _, err := g.Run(ctx, "config", "--local", key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetConfig reads a local config value exactly as stored, surrounding
// whitespace included. A missing key is reported with ok=false and no error.
func (g *Git) GetConfig(ctx context.Context, key string) (value string, ok bool, err error) {
	res, err := g.Exec(ctx, "config", "--local", "--get", key)
	if err != nil {
		return "", false, err
	}
	switch res.ExitCode {
	case 0:
		return strings.TrimSuffix(string(res.Stdout), "\n"), true, nil
	case 1:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %s: %w", key, res.Err())
	}
}

// ListBranches returns the short names of local branches matching pattern
// (a "git branch --list" glob).
func (g *Git) ListBranches(ctx context.Context, pattern string) ([]string, error) {
	out, err := g.Output(ctx, "branch", "--list", "--format=%(refname)", pattern)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		branches = append(branches, strings.TrimPrefix(line, "refs/heads/"))
	}
	return branches, nil
}

// BranchExists reports whether refs/heads/<branch> exists.
func (g *Git) BranchExists(ctx context.Context, branch string) (bool, error) {
	res, err := g.Exec(ctx, "rev-parse", "--verify", "--quiet", BranchRef(branch))
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("verify branch %s: %w", branch, res.Err())
	}
}

// BranchRef returns the fully-qualified ref of a local branch.
func BranchRef(branch string) string {
	return "refs/heads/" + branch
}

// GitDir returns the absolute path of the repository's git directory.
func (g *Git) GitDir(ctx context.Context) (string, error) {
	out, err := g.Output(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("resolve git dir: %w", err)
	}
	return out, nil
}

// CurrentBranch returns the branch HEAD points to, even if it has no commits yet.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.Output(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	return out, nil
}

// CommitCount returns the number of commits reachable from ref.
func (g *Git) CommitCount(ctx context.Context, ref string) (int, error) {
	out, err := g.Output(ctx, "rev-list", "--count", ref)
	if err != nil {
		return 0, fmt.Errorf("count commits of %s: %w", ref, err)
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse commit count %q: %w", out, err)
	}
	return n, nil
}

// Add stages paths.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.Run(ctx, args...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	res, err := g.Exec(ctx, "diff", "--cached", "--quiet")
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("check staged changes: %w", res.Err())
	}
}

// Commit records a commit with message. allowEmpty permits a commit without
// changes.
func (g *Git) Commit(ctx context.Context, message string, allowEmpty bool) error {
	args := []string{"commit", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	if _, err := g.Run(ctx, args...); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// CreateBranch creates branch at from without checking it out.
func (g *Git) CreateBranch(ctx context.Context, branch, from string) error {
	if _, err := g.Run(ctx, "branch", branch, from); err != nil {
		return fmt.Errorf("create branch %s from %s: %w", branch, from, err)
	}
	return nil
}

// HasCommits reports whether HEAD resolves to a commit. It is false on a
// freshly initialised repository.
func (g *Git) HasCommits(ctx context.Context) (bool, error) {
	res, err := g.Exec(ctx, "rev-parse", "--verify", "--quiet", "HEAD^{commit}")
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("resolve HEAD: %w", res.Err())
	}
}

// CommitEmptyRoot records a parentless commit of the empty tree and points
// HEAD's branch at it. The index and working tree are left untouched, so
// staged changes stay staged. It fails if the branch already has a commit.
func (g *Git) CommitEmptyRoot(ctx context.Context, message string) (string, error) {
	// stdin is empty, so this hashes the empty tree
	tree, err := g.Output(ctx, "hash-object", "-w", "-t", "tree", "--stdin")
	if err != nil {
		return "", fmt.Errorf("write empty tree: %w", err)
	}
	sha, err := g.Output(ctx, "commit-tree", tree, "-m", message)
	if err != nil {
		return "", fmt.Errorf("commit empty tree: %w", err)
	}
	if _, err := g.Run(ctx, "update-ref", "-m", message, "HEAD", sha, ""); err != nil {
		return "", fmt.Errorf("update HEAD to %s: %w", sha, err)
	}
	return sha, nil
}
