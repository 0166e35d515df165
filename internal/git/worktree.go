package git

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// WorktreeEntry is one block of "git worktree list --porcelain" output.
type WorktreeEntry struct {
	Path   string
	Head   string
	Branch string // fully-qualified, e.g. refs/heads/main

	// Flags holds the remaining attributes. Bare tokens such as "bare" or
	// "detached" map to "true"; "locked <reason>" maps to the reason.
	Flags map[string]string
}

// Locked reports whether the worktree is locked.
func (e WorktreeEntry) Locked() bool {
	_, ok := e.Flags["locked"]
	return ok
}

// Prunable reports whether git considers the worktree prunable.
func (e WorktreeEntry) Prunable() bool {
	_, ok := e.Flags["prunable"]
	return ok
}

// ParseWorktreeList parses NUL-delimited "git worktree list --porcelain -z"
// output into entries keyed by branch ref. Blocks without a branch (detached
// HEAD, bare) are dropped.
func ParseWorktreeList(raw []byte) map[string]WorktreeEntry {
	entries := make(map[string]WorktreeEntry)
	cur := WorktreeEntry{Flags: map[string]string{}}
	started := false

	flush := func() {
		if started && cur.Branch != "" {
			entries[cur.Branch] = cur
		}
		cur = WorktreeEntry{Flags: map[string]string{}}
		started = false
	}

	for _, field := range bytes.Split(raw, []byte{0}) {
		line := string(field)
		if line == "" {
			flush()
			continue
		}
		started = true
		key, value, hasValue := strings.Cut(line, " ")
		switch key {
		case "worktree":
			cur.Path = value
		case "HEAD":
			cur.Head = value
		case "branch":
			cur.Branch = value
		default:
			if !hasValue {
				value = "true"
			}
			cur.Flags[key] = value
		}
	}
	flush()

	return entries
}

// ListWorktrees returns the repository's worktree registry keyed by branch ref.
// It is read fresh on every call.
func (g *Git) ListWorktrees(ctx context.Context) (map[string]WorktreeEntry, error) {
	res, err := g.Run(ctx, "worktree", "list", "--porcelain", "-z")
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return ParseWorktreeList(res.Stdout), nil
}

// WorktreeOptions controls how AddWorktree binds the branch.
type WorktreeOptions struct {
	// NewBranch creates branch instead of checking out an existing one.
	NewBranch bool
	// Orphan creates branch as a new orphan branch. Implies NewBranch.
	Orphan bool
}

// AddWorktree creates a worktree at path bound to branch.
func (g *Git) AddWorktree(ctx context.Context, path, branch string, opts WorktreeOptions) error {
	args := []string{"worktree", "add"}
	switch {
	case opts.Orphan:
		args = append(args, "--orphan", "-b", branch, path)
	case opts.NewBranch:
		args = append(args, "-b", branch, path)
	default:
		args = append(args, path, branch)
	}
	if _, err := g.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to create worktree for %s: %w", branch, err)
	}
	return nil
}

// PruneWorktrees removes registry entries whose directories are gone.
func (g *Git) PruneWorktrees(ctx context.Context) error {
	if _, err := g.Run(ctx, "worktree", "prune"); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}
