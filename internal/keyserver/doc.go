// Package keyserver provisions the storage topology of a git keyserver.
//
// Keys are kept on two orphan branches, <base>/test and <base>/final, each
// materialised as its own worktree under a randomly named staging directory.
// The primary branch of the repository is never checked out or modified.
//
// # Initialisation
//
// [Server.Init] runs a fixed sequence against the repository root:
//
//  1. git init (a no-op on an existing repository)
//  2. preflight: the keys branches and the keys directories must not exist
//  3. local identity config, when one was given
//  4. the repository configuration branch with its KEYSERVER marker files
//  5. the test and final orphan worktrees
//  6. gitks.keys.branch / gitks.keys.dir (only when non-default) and
//     enc.keyserver
//  7. the test and final keys directories
//
// Every check in step 2 runs before the first mutation, so a failed attempt
// leaves no branch, worktree or config key behind. A failure after step 2 is
// not rolled back. Before step 1, git older than 2.42 (no worktree add
// --orphan) is rejected with [ErrPreconditionNotFound].
//
// A relative keys directory under ".git", the default included, lives in the
// repository's git directory, which for a linked worktree is
// .git/worktrees/<name> of the main checkout.
//
// Init holds an exclusive per-repository lock file in os.TempDir for the
// whole sequence, so concurrent inits of one repository run one at a time.
//
// # Errors
//
// Failures wrap one of [ErrAlreadyExists], [ErrPreconditionNotFound] or
// [ErrUsage], or carry a *cmd.ExitError / *git.CloneError from the failed
// git invocation.
package keyserver
