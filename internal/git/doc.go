// Package git drives the git CLI for gitks.
//
// All operations shell out to git through [cmd.Exec] rather than using a Go
// git implementation, so user configuration (identity, hooks, credential
// helpers) applies exactly as it does on the command line.
//
// # Runner views
//
// A [Git] value is bound to a repository root and is never mutated. Scoped
// variants are derived from it:
//
//   - [Git.WithDir]: run with an extra -C override (e.g. inside a worktree)
//   - [Git.WithEnv], [Git.WithIdentity]: run with environment overrides
//
// # Repository Operations
//
//   - [Git.Init], [Git.SetConfig], [Git.GetConfig]: bootstrap and local config
//   - [Git.ListBranches], [Git.BranchExists]: branch namespace queries
//   - [Git.GitDir]: metadata directory lookup (per worktree)
//   - [Git.CommitEmptyRoot]: empty root commit that leaves the index alone
//
// # Worktree Registry
//
//   - [ParseWorktreeList]: parse NUL-delimited "worktree list --porcelain -z" output
//   - [Git.ListWorktrees]: registry keyed by branch ref
//   - [Git.AddWorktree]: attach, branch or orphan worktree creation
//
// # Helpers
//
//   - [ExtractRepoName]: repository name from URL or path
//   - [IsGitRepository]: non-failing working tree check
//   - [Clone]: clone with a [CloneError] carrying exit code and stderr
package git
