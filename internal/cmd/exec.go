package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/raphi011/gitks/internal/log"
)

// Result holds the outcome of a finished command.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Err returns an *ExitError if the command exited non-zero, nil otherwise.
func (r *Result) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{
		Args:     r.Args,
		ExitCode: r.ExitCode,
		Stderr:   strings.TrimSpace(string(r.Stderr)),
	}
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Exec runs name with args in dir. env entries (KEY=VALUE) are appended to the
// current process environment. A non-zero exit is reported in the Result, not
// as an error; the error is only set when the process could not be run or the
// context ended.
func Exec(ctx context.Context, dir string, env []string, name string, args ...string) (*Result, error) {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	err := c.Run()
	done(time.Since(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	res := &Result{
		Args:   append([]string{name}, args...),
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// Checked runs a command like Exec but turns a non-zero exit into an
// *ExitError. The Result is returned in both cases when the process ran.
func Checked(ctx context.Context, dir string, env []string, name string, args ...string) (*Result, error) {
	res, err := Exec(ctx, dir, env, name, args...)
	if err != nil {
		return nil, err
	}
	return res, res.Err()
}

// RunContext executes a command and returns an *ExitError if it fails.
func RunContext(ctx context.Context, dir, name string, args ...string) error {
	_, err := Checked(ctx, dir, nil, name, args...)
	return err
}

// OutputContext executes a command and returns stdout, or an *ExitError if it fails.
func OutputContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	res, err := Checked(ctx, dir, nil, name, args...)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}
