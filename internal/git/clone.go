package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphi011/gitks/internal/cmd"
)

// CloneError reports a failed clone with the exit code and stderr of git.
type CloneError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("git clone failed with exit code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Clone clones url into dest.
func Clone(ctx context.Context, url, dest string) error {
	res, err := cmd.Exec(ctx, "", nil, "git", "clone", url, dest)
	if err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	if res.ExitCode != 0 {
		return &CloneError{
			Args:     res.Args,
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(string(res.Stderr)),
		}
	}
	return nil
}
