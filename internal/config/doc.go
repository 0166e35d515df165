// Package config handles loading and validation of gitks configuration.
//
// Configuration is read from ~/.config/gitks/config.toml (or the file named by
// GITKS_CONFIG) with an environment variable override for the staging
// directory.
//
// # Configuration Sources (highest priority first)
//
//   - Command line flags (applied by the CLI)
//   - GITKS_STAGING_DIR env var: base directory for worktree staging dirs
//   - Config file settings
//   - Default values
//
// # Example
//
//	staging_dir = "~/.gitks/worktrees"
//	staging_name_length = 12
//	keys_branch = "__gitks_internal/keys"
//	keys_dir = ".git/.gpg-home/.gitks"
//	clone_dir = "~/.gitks/servers"
//
//	[user]
//	name = "Key Keeper"
//	email = "keys@example.com"
//
// staging_dir and clone_dir must be absolute or start with ~. keys_dir is
// relative to the repository root unless absolute.
package config
