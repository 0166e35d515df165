package keyserver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/raphi011/gitks/internal/config"
	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/log"
)

const stagingAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// WorktreeGenerator materialises branches as worktrees.
type WorktreeGenerator interface {
	// Generate creates a new branch and worktree per name under a fresh
	// staging directory and returns that directory. With orphan set, every
	// branch starts an independent history with one empty commit.
	Generate(ctx context.Context, repoPath string, orphan bool, branches ...string) (string, error)

	// Attach creates worktrees for existing branches under a fresh staging
	// directory and returns that directory.
	Attach(ctx context.Context, repoPath string, branches ...string) (string, error)
}

// StagingGenerator places worktrees at <BaseDir>/<random>/<branch>.
type StagingGenerator struct {
	// BaseDir defaults to the user's home directory.
	BaseDir string
	// NameLength is the length of the random directory name. Defaults to 10.
	NameLength int
	// Git overrides the runner used for the repository. When nil a runner
	// bound to repoPath is used.
	Git *git.Git
}

// Generate implements WorktreeGenerator.
func (s *StagingGenerator) Generate(ctx context.Context, repoPath string, orphan bool, branches ...string) (string, error) {
	opts := git.WorktreeOptions{NewBranch: true, Orphan: orphan}
	return s.add(ctx, repoPath, opts, branches)
}

// Attach implements WorktreeGenerator.
func (s *StagingGenerator) Attach(ctx context.Context, repoPath string, branches ...string) (string, error) {
	return s.add(ctx, repoPath, git.WorktreeOptions{}, branches)
}

// add creates the worktrees in order. Worktrees created before a failure
// are left in place.
func (s *StagingGenerator) add(ctx context.Context, repoPath string, opts git.WorktreeOptions, branches []string) (string, error) {
	if len(branches) == 0 {
		return "", fmt.Errorf("%w: no branches to generate worktrees for", ErrUsage)
	}
	l := log.FromContext(ctx)

	staging, err := s.stagingDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	l.Debug("staging directory", "path", staging)

	g := s.Git
	if g == nil {
		g = git.New(repoPath)
	}

	for _, branch := range branches {
		dir := filepath.Join(staging, branch)
		if err := g.AddWorktree(ctx, dir, branch, opts); err != nil {
			return "", err
		}
		l.Debug("worktree created", "branch", branch, "path", dir)

		if !opts.Orphan {
			continue
		}
		msg := "initial commit for branch: " + branch
		if err := g.WithDir(dir).Commit(ctx, msg, true); err != nil {
			return "", fmt.Errorf("initial commit for %s: %w", branch, err)
		}
		l.Debug("empty commit created", "branch", branch)
	}
	return staging, nil
}

func (s *StagingGenerator) stagingDir() (string, error) {
	base := s.BaseDir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve staging base directory: %w", err)
		}
		base = home
	}
	n := s.NameLength
	if n <= 0 {
		n = config.DefaultStagingNameLength
	}
	return filepath.Join(base, randomName(n)), nil
}

func randomName(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = stagingAlphabet[rand.IntN(len(stagingAlphabet))]
	}
	return string(b)
}
