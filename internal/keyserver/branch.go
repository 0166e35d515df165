package keyserver

import (
	"context"
	"fmt"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/log"
)

// forkCandidates are the branches BranchServer forks the keys branches from,
// in order of preference.
var forkCandidates = []string{"main", "master"}

// BranchServer keeps keys on plain branches forked from main or master,
// without worktrees. The checked-out branch is never switched.
type BranchServer struct {
	root      string
	name      string
	email     string
	git       *git.Git
	validator KeyValidator

	// Lenient makes Init create an empty initial commit when the
	// repository has no commits yet, instead of failing with
	// ErrPreconditionNotFound.
	Lenient bool
}

// NewBranchServer returns a branch-backed keyserver for opts.RepoRoot.
func NewBranchServer(opts Options, lenient bool) (*BranchServer, error) {
	root, err := resolveRoot(opts.RepoRoot)
	if err != nil {
		return nil, err
	}
	return &BranchServer{
		root:      root,
		name:      opts.UserName,
		email:     opts.UserEmail,
		git:       git.New(root).WithIdentity(opts.UserName, opts.UserEmail),
		validator: opts.Validator,
		Lenient:   lenient,
	}, nil
}

// Root returns the repository root.
func (s *BranchServer) Root() string {
	return s.root
}

// KeyValidator returns the validator keys are checked with.
func (s *BranchServer) KeyValidator() KeyValidator {
	return s.validator
}

// Init creates <keysBranch>/test and <keysBranch>/final, records config and
// creates the keys directories. Empty arguments select the defaults.
func (s *BranchServer) Init(ctx context.Context, keysBranch, keysDir string) (*InitResult, error) {
	keysBranch, keysDir = withDefaults(keysBranch, keysDir)
	l := log.FromContext(ctx)

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

	from, err := s.forkPoint(ctx)
	if err != nil {
		return nil, err
	}

	if err := setIdentity(ctx, s.git, s.name, s.email); err != nil {
		return nil, err
	}

	if from == "" {
		if from, err = s.initialCommit(ctx); err != nil {
			return nil, err
		}
	}

	for _, b := range []string{TestBranch(keysBranch), FinalBranch(keysBranch)} {
		if err := s.git.CreateBranch(ctx, b, from); err != nil {
			return nil, err
		}
		l.Debug("branch created", "branch", b, "from", from)
	}
	l.Info("keys branches created", "base", keysBranch, "from", from)

	if err := writeConfig(ctx, s.git, keysBranch, keysDir); err != nil {
		return nil, err
	}
	if err := makeKeysDirs(ctx, res.KeysPath); err != nil {
		return nil, err
	}

	l.Info("initialised gitks", "root", s.root)
	return res, nil
}

// forkPoint returns the branch to fork from. An empty result means the
// repository has no commits and lenient mode will create one.
func (s *BranchServer) forkPoint(ctx context.Context) (string, error) {
	for _, b := range forkCandidates {
		ok, err := s.git.BranchExists(ctx, b)
		if err != nil {
			return "", err
		}
		if ok {
			return b, nil
		}
	}

	if !s.Lenient {
		log.FromContext(ctx).Error("no fork point", "candidates", forkCandidates)
		return "", fmt.Errorf("%w: no base main branches %v found, lenient mode off", ErrPreconditionNotFound, forkCandidates)
	}

	// Without main or master, fork from whatever HEAD points at when it
	// has history.
	born, err := s.git.HasCommits(ctx)
	if err != nil {
		return "", err
	}
	if born {
		return "HEAD", nil
	}
	return "", nil
}

// initialCommit records a commit of the empty tree on the unborn current
// branch and returns that branch. Anything the user has staged stays staged.
func (s *BranchServer) initialCommit(ctx context.Context) (string, error) {
	if _, err := s.git.CommitEmptyRoot(ctx, "initial commit"); err != nil {
		return "", err
	}
	branch, err := s.git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	log.FromContext(ctx).Info("created empty initial commit", "branch", branch)
	return branch, nil
}
