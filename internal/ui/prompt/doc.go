// Package prompt provides interactive prompts.
//
// Prompts render to stderr so stdout stays free for command output.
package prompt
