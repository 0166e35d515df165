package keyserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/raphi011/gitks/internal/git"
)

// resolveTempDir creates a temp directory and resolves macOS symlinks.
func resolveTempDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(tmpDir)
	if err != nil {
		t.Fatalf("failed to resolve symlinks for %s: %v", tmpDir, err)
	}
	return resolved
}

// setupRepo creates a repository on branch, optionally with one commit.
func setupRepo(t *testing.T, branch string, withCommit bool) *git.Git {
	t.Helper()
	ctx := context.Background()
	root := filepath.Join(resolveTempDir(t), "repo")
	if _, err := git.New("").Run(ctx, "init", "-b", branch, root); err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	g := git.New(root)
	for _, kv := range [][2]string{
		{"user.email", "test@test.com"},
		{"user.name", "Test User"},
		{"commit.gpgsign", "false"},
	} {
		if err := g.SetConfig(ctx, kv[0], kv[1]); err != nil {
			t.Fatalf("failed to set %s: %v", kv[0], err)
		}
	}
	if !withCommit {
		return g
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := g.Add(ctx, "README.md"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	if err := g.Commit(ctx, "Initial commit", false); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return g
}

// skipWithoutOrphanWorktrees skips tests that need "worktree add --orphan".
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

// newTestServer returns a Server whose worktrees land in a temp directory.
func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	skipWithoutOrphanWorktrees(t)
	s, err := NewServer(Options{
		RepoRoot:  root,
		UserName:  "ss",
		UserEmail: "ss@ss.ss",
		Generator: &StagingGenerator{BaseDir: resolveTempDir(t)},
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	return s
}

func commitCount(t *testing.T, g *git.Git, ref string) int {
	t.Helper()
	n, err := g.CommitCount(context.Background(), ref)
	if err != nil {
		t.Fatalf("CommitCount(%s) = %v", ref, err)
	}
	return n
}

func getConfig(t *testing.T, g *git.Git, key string) (string, bool) {
	t.Helper()
	v, ok, err := g.GetConfig(context.Background(), key)
	if err != nil {
		t.Fatalf("GetConfig(%s) = %v", key, err)
	}
	return v, ok
}

func TestServer_Init_Defaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := filepath.Join(resolveTempDir(t), "fresh")
	s := newTestServer(t, root)

	res, err := s.Init(ctx, "", "")
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if !git.IsGitRepository(ctx, root) {
		t.Fatalf("%s is not a git repository after Init", root)
	}
	g := git.New(root)

	worktrees, err := g.ListWorktrees(ctx)
	if err != nil {
		t.Fatalf("ListWorktrees() = %v", err)
	}
	for _, tc := range []struct {
		branch string
		path   string
	}{
		{TestBranch(DefaultKeysBranch), res.TestWorktree()},
		{FinalBranch(DefaultKeysBranch), res.FinalWorktree()},
	} {
		entry, ok := worktrees[git.BranchRef(tc.branch)]
		if !ok {
			t.Errorf("no worktree for %s", tc.branch)
			continue
		}
		if entry.Path != tc.path {
			t.Errorf("worktree of %s = %q, want %q", tc.branch, entry.Path, tc.path)
		}
		if n := commitCount(t, g, tc.branch); n != 1 {
			t.Errorf("%s has %d commits, want 1", tc.branch, n)
		}
	}

	if v, _ := getConfig(t, g, ConfigEncKeyserver); v != Keyserver {
		t.Errorf("%s = %q, want %q", ConfigEncKeyserver, v, Keyserver)
	}
	for _, key := range []string{ConfigKeysBranch, ConfigKeysDir} {
		if v, ok := getConfig(t, g, key); ok {
			t.Errorf("%s = %q, want unset for default value", key, v)
		}
	}

	for _, marker := range []string{TestMarker, FinalMarker} {
		dir := filepath.Join(root, ".git", ".gpg-home", ".gitks", marker)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("keys directory %s missing: %v", dir, err)
		}
	}

	if filepath.Dir(filepath.Dir(res.TestWorktree())) != filepath.Dir(filepath.Dir(res.FinalWorktree())) {
		t.Errorf("test and final worktrees in different staging dirs: %s, %s", res.TestWorktree(), res.FinalWorktree())
	}
}

func TestServer_Init_ConfBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	s := newTestServer(t, g.Root())

	res, err := s.Init(ctx, "", "")
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}

	want := map[string]string{
		MarkerKeyserver: "gitks\n",
		MarkerURL:       "SELF\n",
		MarkerPath:      "SELF\n",
	}
	for name, content := range want {
		got, err := os.ReadFile(filepath.Join(res.ConfWorktree, name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}

	// empty initial commit plus the marker commit
	if n := commitCount(t, g, ConfBranch); n != 2 {
		t.Errorf("%s has %d commits, want 2", ConfBranch, n)
	}

	current, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch() = %v", err)
	}
	if current != "main" {
		t.Errorf("checked-out branch = %q, want main", current)
	}
	if n := commitCount(t, g, "main"); n != 1 {
		t.Errorf("main has %d commits, want 1", n)
	}
}

func TestServer_Init_Collision(t *testing.T) {
	t.Parallel()

	const base = "ks/keys"
	tests := []struct {
		name     string
		existing string
	}{
		{"base", base},
		{"test child", TestBranch(base)},
		{"final child", FinalBranch(base)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			g := setupRepo(t, "main", true)
			if err := g.CreateBranch(ctx, tt.existing, "main"); err != nil {
				t.Fatalf("CreateBranch() = %v", err)
			}
			before, err := g.ListBranches(ctx, "*")
			if err != nil {
				t.Fatalf("ListBranches() = %v", err)
			}

			s := newTestServer(t, g.Root())
			_, err = s.Init(ctx, base, "")
			if !errors.Is(err, ErrAlreadyExists) {
				t.Fatalf("Init() = %v, want ErrAlreadyExists", err)
			}

			after, err := g.ListBranches(ctx, "*")
			if err != nil {
				t.Fatalf("ListBranches() = %v", err)
			}
			if !slices.Equal(before, after) {
				t.Errorf("branches changed: before %v, after %v", before, after)
			}
			worktrees, err := g.ListWorktrees(ctx)
			if err != nil {
				t.Fatalf("ListWorktrees() = %v", err)
			}
			if len(worktrees) != 1 {
				t.Errorf("worktrees = %d, want only the main worktree", len(worktrees))
			}
			for _, key := range []string{ConfigEncKeyserver, ConfigKeysBranch, ConfigKeysDir} {
				if v, ok := getConfig(t, g, key); ok {
					t.Errorf("%s = %q written by failed Init", key, v)
				}
			}
			if v, _ := getConfig(t, g, "user.name"); v != "Test User" {
				t.Errorf("user.name = %q, changed by failed Init", v)
			}
		})
	}
}

func TestServer_Init_ExistingKeysDirs(t *testing.T) {
	t.Parallel()

	for _, marker := range []string{TestMarker, FinalMarker} {
		t.Run(marker, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			g := setupRepo(t, "main", true)
			keysDir := "keys"
			if err := os.MkdirAll(filepath.Join(g.Root(), keysDir, marker), 0755); err != nil {
				t.Fatalf("failed to create keys dir: %v", err)
			}

			s := newTestServer(t, g.Root())
			_, err := s.Init(ctx, "", keysDir)
			if !errors.Is(err, ErrAlreadyExists) {
				t.Fatalf("Init() = %v, want ErrAlreadyExists", err)
			}
			if ok, _ := g.BranchExists(ctx, TestBranch(DefaultKeysBranch)); ok {
				t.Error("keys branch created by failed Init")
			}
			if ok, _ := g.BranchExists(ctx, ConfBranch); ok {
				t.Error("configuration branch created by failed Init")
			}
		})
	}
}

func TestMakeKeysDirs_Existing(t *testing.T) {
	t.Parallel()

	keysPath := filepath.Join(resolveTempDir(t), "keys")
	if err := makeKeysDirs(context.Background(), keysPath); err != nil {
		t.Fatalf("makeKeysDirs() = %v", err)
	}
	if err := makeKeysDirs(context.Background(), keysPath); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("makeKeysDirs() again = %v, want ErrAlreadyExists", err)
	}
}

func TestServer_Init_ConfigRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", false)
	s := newTestServer(t, g.Root())

	const (
		branch = "ks/keys"
		dir    = ".ano-gpg-home/.ano-gitks"
	)
	res, err := s.Init(ctx, branch, dir)
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if v, _ := getConfig(t, g, ConfigKeysBranch); v != branch {
		t.Errorf("%s = %q, want %q", ConfigKeysBranch, v, branch)
	}
	if v, _ := getConfig(t, g, ConfigKeysDir); v != dir {
		t.Errorf("%s = %q, want %q", ConfigKeysDir, v, dir)
	}

	settings, err := LoadSettings(ctx, g)
	if err != nil {
		t.Fatalf("LoadSettings() = %v", err)
	}
	want := Settings{KeysBranch: branch, KeysDir: dir, Keyserver: Keyserver}
	if settings != want {
		t.Errorf("LoadSettings() = %+v, want %+v", settings, want)
	}

	if res.KeysPath != filepath.Join(g.Root(), dir) {
		t.Errorf("KeysPath = %q", res.KeysPath)
	}
	for _, marker := range []string{TestMarker, FinalMarker} {
		if _, err := os.Stat(filepath.Join(res.KeysPath, marker)); err != nil {
			t.Errorf("keys directory %s: %v", marker, err)
		}
	}
}

func TestServer_Init_WhitespaceKeysDir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	s := newTestServer(t, g.Root())

	const dir = "keys dir "
	res, err := s.Init(ctx, "nb", dir)
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}
	settings, err := LoadSettings(ctx, g)
	if err != nil {
		t.Fatalf("LoadSettings() = %v", err)
	}
	if settings.KeysDir != dir {
		t.Errorf("KeysDir = %q, want %q", settings.KeysDir, dir)
	}
	if res.KeysPath != filepath.Join(g.Root(), dir) {
		t.Errorf("KeysPath = %q, want %q", res.KeysPath, filepath.Join(g.Root(), dir))
	}
	if _, err := os.Stat(filepath.Join(g.Root(), dir, TestMarker)); err != nil {
		t.Errorf("keys directory: %v", err)
	}
}

func TestServer_Init_LinkedWorktree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	linked := filepath.Join(filepath.Dir(g.Root()), "linked")
	if _, err := g.Run(ctx, "worktree", "add", "-b", "feature", linked); err != nil {
		t.Fatalf("worktree add = %v", err)
	}

	res, err := newTestServer(t, linked).Init(ctx, "", "")
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}

	want := filepath.Join(g.Root(), ".git", "worktrees", "linked", ".gpg-home", ".gitks")
	if res.KeysPath != want {
		t.Errorf("KeysPath = %q, want %q", res.KeysPath, want)
	}
	if res.KeysDir != DefaultKeysDir {
		t.Errorf("KeysDir = %q, want %q", res.KeysDir, DefaultKeysDir)
	}
	for _, marker := range []string{TestMarker, FinalMarker} {
		if info, err := os.Stat(filepath.Join(want, marker)); err != nil || !info.IsDir() {
			t.Errorf("keys directory %s missing: %v", marker, err)
		}
	}
	// .git is a file in a linked worktree
	if info, err := os.Lstat(filepath.Join(linked, ".git")); err != nil || info.IsDir() {
		t.Errorf("%s/.git should still be a file: %v", linked, err)
	}
}

func TestResolveKeysPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", false)
	root := g.Root()
	gitDir := filepath.Join(root, ".git")

	tests := []struct {
		keysDir string
		want    string
	}{
		{DefaultKeysDir, filepath.Join(gitDir, ".gpg-home", ".gitks")},
		{"./.git/keys", filepath.Join(gitDir, "keys")},
		{".git", gitDir},
		{".gitks", filepath.Join(root, ".gitks")},
		{"keys dir ", filepath.Join(root, "keys dir ")},
		{"/srv/keys", "/srv/keys"},
	}

	for _, tt := range tests {
		got, err := resolveKeysPath(ctx, g, root, tt.keysDir)
		if err != nil {
			t.Fatalf("resolveKeysPath(%q) = %v", tt.keysDir, err)
		}
		if got != tt.want {
			t.Errorf("resolveKeysPath(%q) = %q, want %q", tt.keysDir, got, tt.want)
		}
	}
}

func TestCheckOrphanSupport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v       git.Version
		wantErr error
	}{
		{git.Version{Major: 2, Minor: 39, Patch: 5}, ErrPreconditionNotFound},
		{git.Version{Major: 2, Minor: 41}, ErrPreconditionNotFound},
		{git.Version{Major: 2, Minor: 42}, nil},
		{git.Version{Major: 2, Minor: 47, Patch: 1}, nil},
	}

	for _, tt := range tests {
		if err := checkOrphanSupport(tt.v); !errors.Is(err, tt.wantErr) {
			t.Errorf("checkOrphanSupport(%v) = %v, want %v", tt.v, err, tt.wantErr)
		}
	}
}

func TestServer_Init_Reinit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	s := newTestServer(t, g.Root())

	first, err := s.Init(ctx, "", "")
	if err != nil {
		t.Fatalf("first Init() = %v", err)
	}
	if _, err := s.Init(ctx, "", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Init() with same branch = %v, want ErrAlreadyExists", err)
	}

	second, err := s.Init(ctx, "other/keys", "other-keys")
	if err != nil {
		t.Fatalf("second Init() = %v", err)
	}
	if second.ConfWorktree != first.ConfWorktree {
		t.Errorf("ConfWorktree = %q, want reused %q", second.ConfWorktree, first.ConfWorktree)
	}
	if n := commitCount(t, g, ConfBranch); n != 2 {
		t.Errorf("%s has %d commits after re-init, want 2", ConfBranch, n)
	}
}

func TestServer_Init_ConfWorktreeRemoved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	s := newTestServer(t, g.Root())

	first, err := s.Init(ctx, "", "")
	if err != nil {
		t.Fatalf("first Init() = %v", err)
	}
	if err := os.RemoveAll(first.ConfWorktree); err != nil {
		t.Fatalf("failed to remove conf worktree: %v", err)
	}

	second, err := s.Init(ctx, "other/keys", "other-keys")
	if err != nil {
		t.Fatalf("second Init() = %v", err)
	}
	if second.ConfWorktree == first.ConfWorktree {
		t.Fatalf("ConfWorktree reused removed path %q", first.ConfWorktree)
	}
	if _, err := os.Stat(filepath.Join(second.ConfWorktree, MarkerKeyserver)); err != nil {
		t.Errorf("marker missing in reattached worktree: %v", err)
	}
	if n := commitCount(t, g, ConfBranch); n != 2 {
		t.Errorf("%s has %d commits, want 2", ConfBranch, n)
	}
}

func TestServer_Init_ExistingConfBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	if err := g.CreateBranch(ctx, ConfBranch, "main"); err != nil {
		t.Fatalf("CreateBranch() = %v", err)
	}
	s := newTestServer(t, g.Root())

	res, err := s.Init(ctx, "", "")
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.ConfWorktree, "README.md")); err != nil {
		t.Errorf("attached worktree should carry the branch history: %v", err)
	}
	// the fork of main plus the marker commit
	if n := commitCount(t, g, ConfBranch); n != 2 {
		t.Errorf("%s has %d commits, want 2", ConfBranch, n)
	}
}

func TestServer_Init_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := setupRepo(t, "main", true)
	s := newTestServer(t, g.Root())

	bases := []string{"a/keys", "b/keys", "c/keys"}
	errs := make([]error, len(bases))
	var wg sync.WaitGroup
	for i, base := range bases {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Init(ctx, base, base+"-dir")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Init(%s) = %v", bases[i], err)
		}
	}
	if n := commitCount(t, g, ConfBranch); n != 2 {
		t.Errorf("%s has %d commits, want 2", ConfBranch, n)
	}
}

func TestServer_KeyValidator(t *testing.T) {
	t.Parallel()

	errInvalid := errors.New("invalid key")
	v := KeyValidatorFunc(func(key []byte) error {
		if len(key) == 0 {
			return errInvalid
		}
		return nil
	})
	s, err := NewServer(Options{RepoRoot: resolveTempDir(t), Validator: v})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	if err := s.KeyValidator().Validate(nil); !errors.Is(err, errInvalid) {
		t.Errorf("Validate(nil) = %v, want %v", err, errInvalid)
	}
	if err := s.KeyValidator().Validate([]byte("key")); err != nil {
		t.Errorf("Validate(key) = %v", err)
	}
}
