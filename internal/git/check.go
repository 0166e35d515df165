package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/raphi011/gitks/internal/cmd"
)

// ErrGitNotFound indicates git is not installed or not in PATH
var ErrGitNotFound = fmt.Errorf("git not found: please install git (https://git-scm.com)")

// CheckGit verifies that git is available in PATH
func CheckGit() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return ErrGitNotFound
	}
	return nil
}

// MinOrphanWorktreeVersion is the first git release with
// "git worktree add --orphan".
var MinOrphanWorktreeVersion = Version{Major: 2, Minor: 42}

// Version is a git release number.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Patch >= o.Patch
}

// ParseVersion parses "git version" output such as "git version 2.39.5" or
// "git version 2.45.1 (Apple Git-154)". Missing components are zero and
// vendor suffixes like ".windows.1" are ignored.
func ParseVersion(out string) (Version, error) {
	fields := strings.Fields(out)
	if len(fields) < 3 || fields[0] != "git" || fields[1] != "version" {
		return Version{}, fmt.Errorf("unexpected git version output %q", out)
	}
	parts := strings.Split(fields[2], ".")
	var nums [3]int
	for i := 0; i < len(parts) && i < len(nums); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			if i == 0 {
				return Version{}, fmt.Errorf("parse git version %q: %w", fields[2], err)
			}
			break
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// InstalledVersion returns the version of the git found in PATH.
func InstalledVersion(ctx context.Context) (Version, error) {
	out, err := cmd.OutputContext(ctx, "", "git", "version")
	if err != nil {
		return Version{}, fmt.Errorf("git version: %w", err)
	}
	return ParseVersion(string(out))
}

// IsGitRepository returns true if path is an existing directory inside a git
// working tree. A failing git check is reported as false, not as an error.
func IsGitRepository(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	res, err := New(path).Exec(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil || res.ExitCode != 0 {
		return false
	}
	return strings.TrimSpace(string(res.Stdout)) == "true"
}
