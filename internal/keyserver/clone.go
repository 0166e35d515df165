package keyserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/log"
)

// CloneSource says where a keyserver repository comes from. It is either
// SelfReference or Remote.
type CloneSource interface {
	cloneSource()
}

// SelfReference means the repository is its own keyserver.
type SelfReference struct{}

// Remote is a keyserver reachable at URL. An empty Dir clones into
// <clone dir>/<repository name>.
type Remote struct {
	URL string
	Dir string
}

func (SelfReference) cloneSource() {}
func (Remote) cloneSource()        {}

// IsSelf reports whether v is one of the self-reference markers.
func IsSelf(v string) bool {
	return v == Self || v == SelfSentinel
}

// ParseCloneSource builds a CloneSource from command-line values. An empty
// or self url with an empty or self dir is a SelfReference. A self value on
// one side with a real value on the other is ErrUsage.
func ParseCloneSource(url, dir string) (CloneSource, error) {
	selfURL := url == "" || IsSelf(url)
	switch {
	case selfURL && (dir == "" || IsSelf(dir)):
		return SelfReference{}, nil
	case selfURL:
		return nil, fmt.Errorf("%w: clone directory %q given without a url", ErrUsage, dir)
	case IsSelf(dir):
		return nil, fmt.Errorf("%w: url %q cannot be cloned into %s", ErrUsage, url, dir)
	}
	return Remote{URL: url, Dir: dir}, nil
}

// CloneResult describes the outcome of Client.Clone.
type CloneResult struct {
	// Dir is the keyserver repository; empty for a SelfReference.
	Dir string
	// Cloned is false when nothing had to be fetched.
	Cloned bool
}

// Client fetches keyserver repositories.
type Client struct {
	// CloneDir is where remotes without an explicit Dir are cloned.
	CloneDir string
}

// Clone makes src available locally. A SelfReference and an existing
// repository at the destination succeed without running git clone.
// Clone failures are returned as *git.CloneError.
func (c *Client) Clone(ctx context.Context, src CloneSource) (CloneResult, error) {
	l := log.FromContext(ctx)

	switch src := src.(type) {
	case SelfReference:
		l.Debug("self-hosted keyserver, nothing to clone")
		return CloneResult{}, nil
	case Remote:
		if src.URL == "" || IsSelf(src.URL) || IsSelf(src.Dir) {
			return CloneResult{}, fmt.Errorf("%w: remote needs a url and a real directory", ErrUsage)
		}
		dest, err := c.destination(src)
		if err != nil {
			return CloneResult{}, err
		}
		if git.IsGitRepository(ctx, dest) {
			l.Info("keyserver already cloned", "dir", dest)
			return CloneResult{Dir: dest}, nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return CloneResult{}, fmt.Errorf("create clone directory: %w", err)
		}
		if err := git.Clone(ctx, src.URL, dest); err != nil {
			return CloneResult{}, err
		}
		l.Info("keyserver cloned", "url", src.URL, "dir", dest)
		return CloneResult{Dir: dest, Cloned: true}, nil
	default:
		return CloneResult{}, fmt.Errorf("%w: unsupported clone source %T", ErrUsage, src)
	}
}

func (c *Client) destination(r Remote) (string, error) {
	if r.Dir != "" {
		return filepath.Abs(r.Dir)
	}
	name := git.ExtractRepoName(r.URL)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: cannot derive a directory name from %q", ErrUsage, r.URL)
	}
	base := c.CloneDir
	if base == "" {
		base = "."
	}
	return filepath.Abs(filepath.Join(base, name))
}
