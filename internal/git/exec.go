package git

import (
	"context"
	"slices"
	"strings"

	"github.com/raphi011/gitks/internal/cmd"
)

// Git runs git subcommands against a repository root.
//
// The zero value runs git in the current directory. Derived views returned by
// WithDir, WithEnv and WithIdentity share nothing mutable with their parent.
type Git struct {
	root string
	opts []string
	env  []string
}

// New returns a runner bound to the repository at root.
func New(root string) *Git {
	return &Git{root: root}
}

// Root returns the repository root the runner is bound to.
func (g *Git) Root() string {
	return g.root
}

// WithDir returns a view that runs git as if started in dir (-C dir).
func (g *Git) WithDir(dir string) *Git {
	c := g.clone()
	c.opts = append(c.opts, "-C", dir)
	return c
}

// WithEnv returns a view with additional KEY=VALUE environment entries.
func (g *Git) WithEnv(kv ...string) *Git {
	c := g.clone()
	c.env = append(c.env, kv...)
	return c
}

// WithIdentity returns a view whose commits use the given author and
// committer. Empty values leave git's own detection in place.
func (g *Git) WithIdentity(name, email string) *Git {
	var env []string
	if name != "" {
		env = append(env, "GIT_AUTHOR_NAME="+name, "GIT_COMMITTER_NAME="+name)
	}
	if email != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+email, "GIT_COMMITTER_EMAIL="+email)
	}
	if len(env) == 0 {
		return g
	}
	return g.WithEnv(env...)
}

func (g *Git) clone() *Git {
	return &Git{
		root: g.root,
		opts: slices.Clone(g.opts),
		env:  slices.Clone(g.env),
	}
}

// args prepends -C <root> and any view options to args.
func (g *Git) args(args []string) []string {
	var all []string
	if g.root != "" {
		all = append(all, "-C", g.root)
	}
	all = append(all, g.opts...)
	return append(all, args...)
}

// Run executes a git subcommand. A non-zero exit is returned as *cmd.ExitError.
func (g *Git) Run(ctx context.Context, args ...string) (*cmd.Result, error) {
	return cmd.Checked(ctx, "", g.env, "git", g.args(args)...)
}

// Exec executes a git subcommand without treating a non-zero exit as an error.
func (g *Git) Exec(ctx context.Context, args ...string) (*cmd.Result, error) {
	return cmd.Exec(ctx, "", g.env, "git", g.args(args)...)
}

// Output executes a git subcommand and returns its trimmed stdout.
func (g *Git) Output(ctx context.Context, args ...string) (string, error) {
	res, err := g.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}
