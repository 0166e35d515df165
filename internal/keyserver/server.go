package keyserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/lock"
	"github.com/raphi011/gitks/internal/log"
)

// Options configures a Server or BranchServer.
type Options struct {
	// RepoRoot is the repository root. Defaults to the working directory.
	RepoRoot string
	// UserName and UserEmail are written to local config and used for
	// every commit. Empty values fall back to git's own identity lookup.
	UserName  string
	UserEmail string
	// Generator materialises worktrees. Defaults to a StagingGenerator in
	// the user's home directory. Ignored by BranchServer.
	Generator WorktreeGenerator
	// Validator checks key material handed to the server.
	Validator KeyValidator
}

// InitResult describes what a successful Init provisioned.
type InitResult struct {
	Root       string
	KeysBranch string
	// KeysDir is the value recorded in config; KeysPath is where it
	// resolves on disk.
	KeysDir  string
	KeysPath string
	// StagingDir holds the test and final worktrees. Empty for the
	// branch layout.
	StagingDir string
	// ConfWorktree is the worktree of the repository configuration branch.
	ConfWorktree string
}

// TestWorktree returns the worktree path of the keys test branch.
func (r *InitResult) TestWorktree() string {
	if r.StagingDir == "" {
		return ""
	}
	return filepath.Join(r.StagingDir, TestBranch(r.KeysBranch))
}

// FinalWorktree returns the worktree path of the keys final branch.
func (r *InitResult) FinalWorktree() string {
	if r.StagingDir == "" {
		return ""
	}
	return filepath.Join(r.StagingDir, FinalBranch(r.KeysBranch))
}

// Server keeps keys on orphan branches, each checked out in its own worktree.
type Server struct {
	root      string
	name      string
	email     string
	git       *git.Git
	generator WorktreeGenerator
	validator KeyValidator
}

// NewServer returns a worktree-backed keyserver for opts.RepoRoot.
func NewServer(opts Options) (*Server, error) {
	root, err := resolveRoot(opts.RepoRoot)
	if err != nil {
		return nil, err
	}
	g := git.New(root).WithIdentity(opts.UserName, opts.UserEmail)
	gen := opts.Generator
	if gen == nil {
		gen = &StagingGenerator{Git: g}
	}
	return &Server{
		root:      root,
		name:      opts.UserName,
		email:     opts.UserEmail,
		git:       g,
		generator: gen,
		validator: opts.Validator,
	}, nil
}

// Root returns the repository root.
func (s *Server) Root() string {
	return s.root
}

// KeyValidator returns the validator keys are checked with.
func (s *Server) KeyValidator() KeyValidator {
	return s.validator
}

// Init provisions the keys branches, worktrees, config and directories.
// Empty arguments select DefaultKeysBranch and DefaultKeysDir.
func (s *Server) Init(ctx context.Context, keysBranch, keysDir string) (*InitResult, error) {
	keysBranch, keysDir = withDefaults(keysBranch, keysDir)
	l := log.FromContext(ctx)

	if err := requireOrphanWorktrees(ctx); err != nil {
		return nil, err
	}

	unlock, err := bootstrap(ctx, s.git, s.root)
	if err != nil {
		return nil, err
	}
	defer unlock()

	keysPath, err := resolveKeysPath(ctx, s.git, s.root, keysDir)
	if err != nil {
		return nil, err
	}
	res := &InitResult{
		Root:       s.root,
		KeysBranch: keysBranch,
		KeysDir:    keysDir,
		KeysPath:   keysPath,
	}

	if err := checkKeysBranches(ctx, s.git, keysBranch); err != nil {
		return nil, err
	}
	if err := checkKeysDirs(res.KeysPath); err != nil {
		return nil, err
	}

	if err := setIdentity(ctx, s.git, s.name, s.email); err != nil {
		return nil, err
	}

	if res.ConfWorktree, err = s.bootstrapConf(ctx); err != nil {
		return nil, err
	}

	l.Debug("creating keys branches", "base", keysBranch)
	res.StagingDir, err = s.generator.Generate(ctx, s.root, true, TestBranch(keysBranch), FinalBranch(keysBranch))
	if err != nil {
		return nil, err
	}
	l.Info("keys branches created", "base", keysBranch, "staging", res.StagingDir)

	if err := writeConfig(ctx, s.git, keysBranch, keysDir); err != nil {
		return nil, err
	}
	if err := makeKeysDirs(ctx, res.KeysPath); err != nil {
		return nil, err
	}

	l.Info("initialised gitks", "root", s.root)
	return res, nil
}

// bootstrapConf makes sure ConfBranch has a worktree holding the marker
// files and returns that worktree's path.
func (s *Server) bootstrapConf(ctx context.Context) (string, error) {
	l := log.FromContext(ctx)

	wt, err := s.confWorktree(ctx)
	if err != nil {
		return "", err
	}

	markers := [][2]string{
		{MarkerKeyserver, Keyserver},
		{MarkerURL, Self},
		{MarkerPath, Self},
	}
	names := make([]string, 0, len(markers))
	for _, m := range markers {
		if err := os.WriteFile(filepath.Join(wt, m[0]), []byte(m[1]+"\n"), 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", m[0], err)
		}
		names = append(names, m[0])
	}

	wg := s.git.WithDir(wt)
	if err := wg.Add(ctx, names...); err != nil {
		return "", err
	}
	staged, err := wg.HasStagedChanges(ctx)
	if err != nil {
		return "", err
	}
	if !staged {
		l.Debug("configuration branch up to date", "branch", ConfBranch)
		return wt, nil
	}
	if err := wg.Commit(ctx, "configure keyserver: "+Keyserver, false); err != nil {
		return "", err
	}
	l.Info("configuration branch updated", "branch", ConfBranch, "worktree", wt)
	return wt, nil
}

// confWorktree returns the worktree of ConfBranch, creating the branch or
// the worktree when missing.
func (s *Server) confWorktree(ctx context.Context) (string, error) {
	exists, err := s.git.BranchExists(ctx, ConfBranch)
	if err != nil {
		return "", err
	}
	if !exists {
		staging, err := s.generator.Generate(ctx, s.root, true, ConfBranch)
		if err != nil {
			return "", err
		}
		return filepath.Join(staging, ConfBranch), nil
	}

	worktrees, err := s.git.ListWorktrees(ctx)
	if err != nil {
		return "", err
	}
	if entry, ok := worktrees[git.BranchRef(ConfBranch)]; ok {
		if !entry.Prunable() {
			log.FromContext(ctx).Debug("reusing configuration worktree", "path", entry.Path)
			return entry.Path, nil
		}
		// The directory is gone; drop the stale entry so the branch can
		// be checked out again.
		if err := s.git.PruneWorktrees(ctx); err != nil {
			return "", err
		}
	}

	staging, err := s.generator.Attach(ctx, s.root, ConfBranch)
	if err != nil {
		return "", err
	}
	return filepath.Join(staging, ConfBranch), nil
}

// resolveRoot makes root absolute, defaulting to the working directory.
func resolveRoot(root string) (string, error) {
	if root == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve repository root: %w", err)
	}
	return abs, nil
}

func withDefaults(keysBranch, keysDir string) (string, string) {
	if keysBranch == "" {
		keysBranch = DefaultKeysBranch
	}
	if keysDir == "" {
		keysDir = DefaultKeysDir
	}
	return keysBranch, keysDir
}

// resolveKeysPath returns where keysDir lives on disk. A relative path under
// ".git" is anchored at the git directory of root, which is not root/.git in
// a linked worktree or submodule. Other relative paths are anchored at root.
func resolveKeysPath(ctx context.Context, g *git.Git, root, keysDir string) (string, error) {
	if filepath.IsAbs(keysDir) {
		return keysDir, nil
	}
	clean := filepath.Clean(keysDir)
	rest, underGitDir := strings.CutPrefix(clean, ".git"+string(filepath.Separator))
	if !underGitDir && clean != ".git" {
		return filepath.Join(root, keysDir), nil
	}
	gitDir, err := g.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, rest), nil
}

// requireOrphanWorktrees fails with ErrPreconditionNotFound when the
// installed git cannot create orphan worktrees.
func requireOrphanWorktrees(ctx context.Context) error {
	v, err := git.InstalledVersion(ctx)
	if err != nil {
		return err
	}
	return checkOrphanSupport(v)
}

func checkOrphanSupport(v git.Version) error {
	if v.AtLeast(git.MinOrphanWorktreeVersion) {
		return nil
	}
	return fmt.Errorf("%w: git %s does not support worktree add --orphan, %s or newer is required",
		ErrPreconditionNotFound, v, git.MinOrphanWorktreeVersion)
}

// bootstrap creates root if needed, takes the repository lock and runs
// git init. The returned func releases the lock.
func bootstrap(ctx context.Context, g *git.Git, root string) (func(), error) {
	l := log.FromContext(ctx)

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create repository root: %w", err)
	}
	path, err := lockPath(root)
	if err != nil {
		return nil, err
	}
	fl := lock.New(path)
	if err := fl.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	unlock := func() {
		if err := fl.Unlock(); err != nil {
			l.Warn("failed to release lock", "path", fl.Path(), "error", err)
		}
	}

	l.Info("initialising git repo", "root", root)
	if err := g.Init(ctx); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// lockPath returns the lock file for root. It lives outside the repository
// so it can be taken before git init.
func lockPath(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve repository root: %w", err)
	}
	sum := sha256.Sum256([]byte(resolved))
	return filepath.Join(os.TempDir(), "gitks-"+hex.EncodeToString(sum[:8])+".lock"), nil
}

// checkKeysBranches fails with ErrAlreadyExists if base or one of its test
// and final children is a branch already.
func checkKeysBranches(ctx context.Context, g *git.Git, base string) error {
	existing, err := g.ListBranches(ctx, base+"*")
	if err != nil {
		return err
	}
	for _, b := range []string{base, TestBranch(base), FinalBranch(base)} {
		if slices.Contains(existing, b) {
			log.FromContext(ctx).Error("keys base branch collision", "base", base, "existing", b)
			return fmt.Errorf("keys base branch %s %w, rerun with a different branch name", base, ErrAlreadyExists)
		}
	}
	return nil
}

// checkKeysDirs fails with ErrAlreadyExists if the test or final keys
// directory is present.
func checkKeysDirs(keysPath string) error {
	for _, marker := range []string{TestMarker, FinalMarker} {
		dir := filepath.Join(keysPath, marker)
		_, err := os.Lstat(dir)
		if err == nil {
			return fmt.Errorf("keys directory %s %w", dir, ErrAlreadyExists)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("check keys directory: %w", err)
		}
	}
	return nil
}

func setIdentity(ctx context.Context, g *git.Git, name, email string) error {
	l := log.FromContext(ctx)
	if name != "" {
		if err := g.SetConfig(ctx, "user.name", name); err != nil {
			return err
		}
		l.Debug("set local identity", "user.name", name)
	}
	if email != "" {
		if err := g.SetConfig(ctx, "user.email", email); err != nil {
			return err
		}
		l.Debug("set local identity", "user.email", email)
	}
	return nil
}

// writeConfig records the keys location and the active keyserver. Keys
// branch and directory are only written when they differ from the defaults.
func writeConfig(ctx context.Context, g *git.Git, keysBranch, keysDir string) error {
	l := log.FromContext(ctx)

	entries := [][2]string{
		{ConfigKeysBranch, keysBranch},
		{ConfigKeysDir, keysDir},
	}
	defaults := map[string]string{
		ConfigKeysBranch: DefaultKeysBranch,
		ConfigKeysDir:    DefaultKeysDir,
	}
	for _, e := range entries {
		if e[1] == defaults[e[0]] {
			l.Debug("default kept, not registered", "key", e[0], "value", e[1])
			continue
		}
		if err := g.SetConfig(ctx, e[0], e[1]); err != nil {
			return err
		}
		l.Debug("registered", "key", e[0], "value", e[1])
	}

	if err := g.SetConfig(ctx, ConfigEncKeyserver, Keyserver); err != nil {
		return err
	}
	l.Info("registered keyserver", "key", ConfigEncKeyserver, "value", Keyserver)
	return nil
}

// makeKeysDirs creates the test and final directories under keysPath.
// Either one existing is ErrAlreadyExists.
func makeKeysDirs(ctx context.Context, keysPath string) error {
	if err := os.MkdirAll(keysPath, 0700); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}
	for _, marker := range []string{TestMarker, FinalMarker} {
		dir := filepath.Join(keysPath, marker)
		if err := os.Mkdir(dir, 0700); err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("keys directory %s %w", dir, ErrAlreadyExists)
			}
			return fmt.Errorf("create keys directory: %w", err)
		}
		log.FromContext(ctx).Info("directory created", "path", dir)
	}
	return nil
}
