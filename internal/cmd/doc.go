// Package cmd runs external commands and reports their outcome.
//
// Two call forms are offered. [Exec] is the raw form: it returns a [Result]
// with exit code and captured output and only fails when the process could
// not run at all. [RunContext], [OutputContext] and [Checked] are the checked
// form: a non-zero exit becomes an [*ExitError] carrying argv, exit code and
// stderr, whose message reads "argv: exit status N: stderr".
//
// # Usage
//
//	if err := cmd.RunContext(ctx, "", "git", "status"); err != nil {
//	    // err.Error() names the command, its exit code and git's stderr
//	}
//
//	res, err := cmd.Exec(ctx, dir, []string{"GIT_AUTHOR_NAME=ks"}, "git", "commit", "--allow-empty", "-m", "init")
//	if err == nil && res.ExitCode != 0 {
//	    // inspect res.Stderr
//	}
//
// Every invocation is echoed through the context logger in verbose mode.
package cmd
